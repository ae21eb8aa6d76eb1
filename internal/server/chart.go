package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"ladder-tracker/internal/annotation"
	"ladder-tracker/internal/chart"
	"ladder-tracker/internal/constants"
	"ladder-tracker/internal/service"
)

const maxChartSide = 4096

// ChartHandler serves GET /chart.png?view=<id>&width=&height=.
type ChartHandler struct {
	views  *service.ViewStore
	logger zerolog.Logger
}

func NewChartHandler(views *service.ViewStore, logger zerolog.Logger) *ChartHandler {
	return &ChartHandler{views: views, logger: logger}
}

func (h *ChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	width, err := dimension(q.Get("width"), constants.DefaultChartWidth)
	if err != nil {
		http.Error(w, "invalid width", http.StatusBadRequest)
		return
	}
	height, err := dimension(q.Get("height"), constants.DefaultChartHeight)
	if err != nil {
		http.Error(w, "invalid height", http.StatusBadRequest)
		return
	}

	view, err := h.views.Get(q.Get("view"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	markers, axis := view.Annotations()
	if axis.PixelWidth != float64(width) {
		// label visibility depends on the rendered width
		axis.PixelWidth = float64(width)
		markers = view.Relayout(axis, annotation.GestureNone)
	}

	var buf bytes.Buffer
	err = chart.Render(&buf, chart.Frame{
		Metric:   view.Metric,
		Timeline: view.Timeline(),
		Markers:  markers,
		Guides:   view.Guides,
		From:     view.Window.FirstObservable,
		To:       view.Window.Now,
	}, width, height)
	if errors.Is(err, chart.ErrEmptyTimeline) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("view_id", view.ID).Msg("failed to render chart")
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func dimension(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxChartSide {
		return 0, errors.New("out of range")
	}
	return n, nil
}
