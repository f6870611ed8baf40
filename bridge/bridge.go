// Package bridge turns one synchronous Lambda invocation into a request for the
// registered entry point and blocks until the dispatched response is complete.
//
// An invocation moves Idle → Bootstrapping → Translating → AwaitingCompletion →
// Returning, or to Failed from any of them. Every failure except a bootstrap
// failure is answered with a best-effort response from the ExceptionHandler;
// bootstrap failures are also returned as errors so the platform records them.
package bridge

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aura-studio/lambda-bridge/bootstrap"
	"github.com/aura-studio/lambda-bridge/capture"
	"github.com/aura-studio/lambda-bridge/dispatch"
	"github.com/aura-studio/lambda-bridge/latch"
	"github.com/aura-studio/lambda-bridge/registry"
	"github.com/aura-studio/lambda-bridge/security"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

// RequestReader translates an inbound event into the request handed to the pipeline.
type RequestReader[E any] interface {
	ReadRequest(ctx context.Context, event E, sc *security.Context) (*http.Request, error)
}

// ResponseWriter translates a finalized capture into the outbound envelope.
type ResponseWriter[R any] interface {
	WriteResponse(rsp *capture.Response) (R, error)
}

// SecurityContextWriter extracts the caller identity from an inbound event.
type SecurityContextWriter[E any] interface {
	WriteSecurityContext(ctx context.Context, event E) (*security.Context, error)
}

// Pipeline dispatches a request and eventually finalizes rsp. When Dispatch
// returns an error it has not taken ownership of rsp.
type Pipeline interface {
	Dispatch(ctx context.Context, req *http.Request, rsp *capture.Response) error
}

type Collaborators[E, R any] struct {
	RequestReader    RequestReader[E]
	ResponseWriter   ResponseWriter[R]
	SecurityWriter   SecurityContextWriter[E]
	ExceptionHandler ExceptionHandler
	Pipeline         Pipeline
}

// Invocation is the per-request state of one Handle call. It is never shared
// between invocations.
type Invocation struct {
	ID       string
	Request  *http.Request
	Response *capture.Response
	Signal   *latch.Latch
	Security *security.Context
	State    State
	Started  time.Time

	dispatched bool
}

type invocationIDKey struct{}

// InvocationIDFromContext returns the id of the invocation ctx belongs to.
func InvocationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(invocationIDKey{}).(string)
	return id, ok
}

type Bridge[E, R any] struct {
	*Options
	gate       *bootstrap.Gate
	registry   *registry.Registry
	wire       bootstrap.Initializer
	reader     RequestReader[E]
	writer     ResponseWriter[R]
	security   SecurityContextWriter[E]
	exceptions ExceptionHandler
	pipeline   Pipeline
}

// New builds a bridge. A nil gate uses the process-wide gate of reg, a nil pipeline
// dispatches to the entry point in reg, and a nil exception handler answers in JSON.
func New[E, R any](gate *bootstrap.Gate, reg *registry.Registry, wire bootstrap.Initializer, c Collaborators[E, R], opts ...Option) *Bridge[E, R] {
	b := &Bridge[E, R]{
		Options:    NewOptions(opts...),
		gate:       gate,
		registry:   reg,
		wire:       wire,
		reader:     c.RequestReader,
		writer:     c.ResponseWriter,
		security:   c.SecurityWriter,
		exceptions: c.ExceptionHandler,
		pipeline:   c.Pipeline,
	}
	if b.registry == nil {
		b.registry = registry.New(registry.DispatcherName)
	}
	if b.gate == nil {
		b.gate = bootstrap.For(b.registry)
	}
	if b.exceptions == nil {
		b.exceptions = JSONExceptionHandler{DebugMode: b.DebugMode}
	}
	if b.pipeline == nil {
		b.pipeline = dispatch.New(b.registry, dispatch.WithDebugMode(b.DebugMode))
	}
	return b
}

func (b *Bridge[E, R]) Registry() *registry.Registry { return b.registry }

func (b *Bridge[E, R]) Gate() *bootstrap.Gate { return b.gate }

// Handle serves one invocation. It only returns a non-nil error when bootstrap
// failed or no response envelope could be produced at all.
func (b *Bridge[E, R]) Handle(ctx context.Context, event E) (R, error) {
	if b.writer == nil {
		var zero R
		return zero, fmt.Errorf("%w: no response writer", ErrResponse)
	}
	inv := b.newInvocation(ctx)

	ctx, cancel := b.withDeadline(ctx)
	defer cancel()
	ctx = context.WithValue(ctx, invocationIDKey{}, inv.ID)

	b.transition(inv, StateBootstrapping)
	if err := b.gate.EnsureInitialized(ctx, b.registry, b.wire); err != nil {
		rsp, _ := b.fail(ctx, inv, err)
		return rsp, err
	}

	b.transition(inv, StateTranslating)
	if b.security != nil {
		sc, err := b.security.WriteSecurityContext(ctx, event)
		if err != nil {
			return b.fail(ctx, inv, fmt.Errorf("%w: security context: %w", ErrTranslation, err))
		}
		inv.Security = sc
	}
	if b.reader == nil {
		return b.fail(ctx, inv, fmt.Errorf("%w: no request reader", ErrTranslation))
	}
	req, err := b.reader.ReadRequest(ctx, event, inv.Security)
	if err != nil {
		return b.fail(ctx, inv, fmt.Errorf("%w: %w", ErrTranslation, err))
	}
	if inv.Security != nil {
		req = req.WithContext(security.NewContext(req.Context(), inv.Security))
	}
	inv.Request = req

	if b.DebugMode {
		log.Printf("[Bridge] Request %s: %s %s", inv.ID, req.Method, req.URL.RequestURI())
	}

	b.transition(inv, StateAwaitingCompletion)
	if err := b.pipeline.Dispatch(ctx, req, inv.Response); err != nil {
		return b.fail(ctx, inv, fmt.Errorf("%w: %w", ErrDispatch, err))
	}
	inv.dispatched = true

	if !inv.Signal.Await(ctx) {
		return b.fail(ctx, inv, fmt.Errorf("%w after %v", ErrCompletionTimeout, time.Since(inv.Started).Round(time.Millisecond)))
	}
	if err := inv.Response.Err(); err != nil {
		return b.fail(ctx, inv, fmt.Errorf("%w: %w", ErrDispatch, err))
	}

	b.transition(inv, StateReturning)
	rsp, err := b.writer.WriteResponse(inv.Response)
	if err != nil {
		return b.fail(ctx, inv, fmt.Errorf("%w: %w", ErrResponse, err))
	}

	if b.DebugMode {
		log.Printf("[Bridge] Response %s: %d in %v", inv.ID, inv.Response.StatusCode(), time.Since(inv.Started))
	}
	return rsp, nil
}

func (b *Bridge[E, R]) newInvocation(ctx context.Context) *Invocation {
	id := uuid.NewString()
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		id = lc.AwsRequestID
	}

	l := latch.New()
	inv := &Invocation{
		ID:       id,
		Signal:   l,
		Response: capture.New(l),
		State:    StateIdle,
		Started:  time.Now(),
	}
	b.notify(inv)
	return inv
}

// withDeadline bounds the invocation by the caller's deadline less the margin,
// or by Timeout when the caller set none.
func (b *Bridge[E, R]) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) > b.DeadlineMargin {
			deadline = deadline.Add(-b.DeadlineMargin)
		}
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, b.Timeout)
}

// fail answers err through the exception handler. The invocation's own capture
// is reused while the pipeline has not taken it, so its signal still fires once.
func (b *Bridge[E, R]) fail(ctx context.Context, inv *Invocation, err error) (R, error) {
	b.transition(inv, StateFailed)
	log.Printf("[Bridge] Invocation %s failed: %v", inv.ID, err)

	w := inv.Response
	if inv.dispatched || w.Flushed() {
		w = capture.New(latch.New())
	}
	b.exceptions.HandleError(ctx, err, w)
	w.FinalizeAndSignal()

	rsp, werr := b.writer.WriteResponse(w)
	if werr != nil {
		return rsp, fmt.Errorf("%w: error response: %w", ErrResponse, werr)
	}
	return rsp, nil
}

func (b *Bridge[E, R]) transition(inv *Invocation, s State) {
	inv.State = s
	b.notify(inv)
}

func (b *Bridge[E, R]) notify(inv *Invocation) {
	if b.StateHook != nil {
		b.StateHook(inv)
	}
}
