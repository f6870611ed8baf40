package proxy

import (
	"context"
	"errors"
	"net/http"

	"github.com/aura-studio/lambda-bridge/bridge"
)

const ErrorTypeHeader = "X-Amzn-ErrorType"

// ExceptionHandler answers with the JSON error body and names the failure
// class in ErrorTypeHeader.
type ExceptionHandler struct {
	DebugMode bool
}

func (h ExceptionHandler) HandleError(ctx context.Context, err error, w http.ResponseWriter) {
	w.Header().Set(ErrorTypeHeader, ErrorType(err))
	bridge.JSONExceptionHandler{DebugMode: h.DebugMode}.HandleError(ctx, err, w)
}

func ErrorType(err error) string {
	switch {
	case errors.Is(err, bridge.ErrInitialization):
		return "InitializationError"
	case errors.Is(err, bridge.ErrTranslation):
		return "TranslationError"
	case errors.Is(err, bridge.ErrDispatch):
		return "DispatchError"
	case errors.Is(err, bridge.ErrCompletionTimeout):
		return "TimeoutError"
	case errors.Is(err, bridge.ErrResponse):
		return "ResponseError"
	default:
		return "InternalError"
	}
}
