package bridge

import (
	"context"
	"errors"
	"net/http"

	"github.com/aura-studio/lambda-bridge/bootstrap"
	"github.com/tidwall/sjson"
)

var (
	// ErrInitialization is the one failure Handle returns as an error.
	ErrInitialization    = bootstrap.ErrInitialization
	ErrTranslation       = errors.New("bridge: translation failed")
	ErrDispatch          = errors.New("bridge: dispatch failed")
	ErrCompletionTimeout = errors.New("bridge: completion timeout")
	ErrResponse          = errors.New("bridge: response translation failed")
)

// StatusFor maps a bridge failure to the status of its best-effort response.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrCompletionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrTranslation), errors.Is(err, ErrDispatch):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// ExceptionHandler writes a best-effort response for a failed invocation.
type ExceptionHandler interface {
	HandleError(ctx context.Context, err error, w http.ResponseWriter)
}

type ExceptionHandlerFunc func(ctx context.Context, err error, w http.ResponseWriter)

func (f ExceptionHandlerFunc) HandleError(ctx context.Context, err error, w http.ResponseWriter) {
	f(ctx, err, w)
}

// JSONExceptionHandler answers with {"message": ...}. The error text is only
// exposed in debug mode.
type JSONExceptionHandler struct {
	DebugMode bool
}

func (h JSONExceptionHandler) HandleError(ctx context.Context, err error, w http.ResponseWriter) {
	status := StatusFor(err)

	message := http.StatusText(status)
	if h.DebugMode && err != nil {
		message = err.Error()
	}
	body, serr := sjson.Set(`{}`, "message", message)
	if serr != nil {
		body = `{"message":"Internal Server Error"}`
	}
	if h.DebugMode {
		if id, ok := InvocationIDFromContext(ctx); ok {
			body, _ = sjson.Set(body, "invocationId", id)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
