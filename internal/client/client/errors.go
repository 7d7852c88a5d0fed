package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/docsync/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RemoteError is a non-2xx response. It unwraps to the matching sentinel.
type RemoteError struct {
	Status int
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote error %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("remote error %d: %v: %s", e.Status, e.Err, e.Detail)
}

func (e *RemoteError) Unwrap() error { return e.Err }

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func statusSentinel(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return common.ErrUnauthorized
	case code == http.StatusNotFound:
		return common.ErrNotFound
	case code == http.StatusConflict:
		return common.ErrConflict
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return common.ErrValidation
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return common.ErrUnavailable
	default:
		return common.ErrInternal
	}
}

// mapResponse converts a non-2xx response into a RemoteError.
func mapResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var p problem
	_ = json.Unmarshal(body, &p)

	detail := p.Detail
	if detail == "" {
		detail = p.Title
	}
	return &RemoteError{Status: resp.StatusCode, Detail: detail, Err: statusSentinel(resp.StatusCode)}
}

// mapTransportError classifies a failure to get any response at all.
func mapTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
}

func mapGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrUnauthorized
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
}
