package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"ladder-tracker/internal/config"
	"ladder-tracker/internal/history"
)

// PulseClient talks to the ladder statistics site.
type PulseClient struct {
	baseURL     string
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d (%s)", e.Status, e.URL)
}

func NewPulseClient(cfg *config.Config) *PulseClient {
	return &PulseClient{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{Limit: -1, Remaining: -1, UpdatedAt: time.Now()},
	}
}

func (c *PulseClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *PulseClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

type SeasonItem struct {
	Region      string `json:"region"`
	BattlenetID int    `json:"battlenetId"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type PatchItem struct {
	Build     int    `json:"build"`
	Version   string `json:"version"`
	Published string `json:"published"`
}

// HistoryQuery selects team history. Either TeamIDs or LegacyUIDs
// identify the competitor.
type HistoryQuery struct {
	GroupBy    string
	TeamIDs    []int64
	LegacyUIDs []string
	From       *time.Time
	To         *time.Time
	Static     []string
	History    []string
}

func (q HistoryQuery) args() *fasthttp.Args {
	args := fasthttp.AcquireArgs()
	if q.GroupBy != "" {
		args.Add("groupBy", q.GroupBy)
	}
	for _, id := range q.TeamIDs {
		args.Add("teamId", strconv.FormatInt(id, 10))
	}
	for _, uid := range q.LegacyUIDs {
		args.Add("legacyUid", uid)
	}
	if q.From != nil {
		args.Add("from", q.From.UTC().Format(time.RFC3339))
	}
	if q.To != nil {
		args.Add("to", q.To.UTC().Format(time.RFC3339))
	}
	for _, s := range q.Static {
		args.Add("static", s)
	}
	for _, h := range q.History {
		args.Add("history", h)
	}
	return args
}

func (c *PulseClient) GetSeasons(ctx context.Context) ([]SeasonItem, error) {
	items, err := doRequest[[]SeasonItem](ctx, c, c.baseURL+"/api/season/list/all")
	if err != nil {
		return nil, err
	}
	return *items, nil
}

func (c *PulseClient) GetPatches(ctx context.Context) ([]PatchItem, error) {
	items, err := doRequest[[]PatchItem](ctx, c, c.baseURL+"/api/patch/list")
	if err != nil {
		return nil, err
	}
	return *items, nil
}

func (c *PulseClient) GetHistory(ctx context.Context, q HistoryQuery) ([]history.HistoryGroup, error) {
	args := q.args()
	defer fasthttp.ReleaseArgs(args)

	groups, err := doRequest[[]history.HistoryGroup](ctx, c, c.baseURL+"/api/team/history?"+args.String())
	if err != nil {
		return nil, err
	}
	return *groups, nil
}

func doRequest[T any](ctx context.Context, client *PulseClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	client.updateRateLimit(resp)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &StatusError{URL: url, Status: resp.StatusCode()}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return &result, nil
}
