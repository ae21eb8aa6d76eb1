package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"ladder-tracker/internal/api"
	"ladder-tracker/internal/history"
	"ladder-tracker/internal/service"
)

func toConnectError(err error) *connect.Error {
	var (
		malformed *history.MalformedHistoryError
		invalid   *service.InvalidQueryError
		status    *api.StatusError
	)
	switch {
	case errors.As(err, &malformed), errors.As(err, &invalid):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, service.ErrViewNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &status):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

var errInvalidWidth = errors.New("width must be positive")
