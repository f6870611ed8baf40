package invoke

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/aura-studio/lambda-bridge/bridge"
)

// Handler serves request envelopes through a bridge. It implements
// lambda.Handler for raw payloads.
type Handler struct {
	bridge  *bridge.Bridge[Request, Response]
	running atomic.Int32
}

func NewHandler(b *bridge.Bridge[Request, Response]) *Handler {
	h := &Handler{bridge: b}
	h.running.Store(1)
	return h
}

func (h *Handler) Start() {
	h.running.Store(1)
}

// Stop makes the handler answer 503 without dispatching.
func (h *Handler) Stop() {
	h.running.Store(0)
}

func (h *Handler) IsRunning() bool {
	return h.running.Load() == 1
}

// HandleRequest serves a decoded envelope and echoes its correlation id.
func (h *Handler) HandleRequest(ctx context.Context, req Request) (Response, error) {
	if !h.IsRunning() {
		return Response{
			StatusCode:    http.StatusServiceUnavailable,
			Body:          `{"message":"Service Unavailable"}`,
			CorrelationID: req.CorrelationID,
		}, nil
	}
	rsp, err := h.bridge.Handle(ctx, req)
	rsp.CorrelationID = req.CorrelationID
	return rsp, err
}

// Invoke decodes payload, serves it, and encodes the answer. A payload that is
// not a valid envelope is still answered through the bridge's error path.
func (h *Handler) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := Parse(payload)
	if err != nil {
		if h.bridge.DebugMode {
			log.Printf("[Invoke] Parse payload error: %v", err)
		}
		req = Request{err: err}
	}

	rsp, herr := h.HandleRequest(ctx, req)
	b, err := Encode(rsp)
	if err != nil {
		return nil, err
	}
	return b, herr
}
