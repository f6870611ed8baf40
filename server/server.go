// Package server hosts the bridge. One process serves one mode: API Gateway
// REST or HTTP API events, direct invocations, SQS batches, or a local HTTP
// listener for development.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/aura-studio/lambda-bridge/bootstrap"
	"github.com/aura-studio/lambda-bridge/bridge"
	"github.com/aura-studio/lambda-bridge/dispatch"
	"github.com/aura-studio/lambda-bridge/engine"
	"github.com/aura-studio/lambda-bridge/invoke"
	"github.com/aura-studio/lambda-bridge/proxy"
	"github.com/aura-studio/lambda-bridge/registry"
	"github.com/aura-studio/lambda-bridge/sqs"
	"github.com/aws/aws-lambda-go/lambda"
)

var ErrUnknownMode = errors.New("server: unknown mode")

var (
	mu            sync.Mutex
	srv           *http.Server
	sqsEngine     *sqs.Engine
	invokeHandler *invoke.Handler
)

// host holds what every mode shares: the registry, the wiring and the pipeline.
type host struct {
	*Options
	registry *registry.Registry
	wire     bootstrap.Initializer
	pipeline *dispatch.Pipeline
}

func newHost(o *Options) *host {
	reg := registry.New(registry.DispatcherName)

	factory := o.EntryPoint
	if factory == nil {
		engineOpts := append([]engine.Option{engine.WithDebugMode(o.DebugMode)}, o.Engine...)
		factory = func() (registry.EntryPoint, error) {
			return engine.New(engineOpts...), nil
		}
	}

	dispatchOpts := append([]dispatch.Option{dispatch.WithDebugMode(o.DebugMode)}, o.Dispatch...)
	return &host{
		Options:  o,
		registry: reg,
		wire:     bootstrap.FromFactory(factory),
		pipeline: dispatch.New(reg, dispatchOpts...),
	}
}

func (h *host) bridgeOptions() []bridge.Option {
	return append([]bridge.Option{
		bridge.WithTimeout(h.Timeout),
		bridge.WithDeadlineMargin(h.DeadlineMargin),
		bridge.WithDebugMode(h.DebugMode),
	}, h.Bridge...)
}

func (h *host) proxyOptions() []proxy.Option {
	return append([]proxy.Option{proxy.WithDebugMode(h.DebugMode)}, h.Proxy...)
}

func (h *host) invokeOptions() []invoke.Option {
	return append([]invoke.Option{invoke.WithDebugMode(h.DebugMode)}, h.Invoke...)
}

func newBridge[E, R any](h *host, c bridge.Collaborators[E, R]) *bridge.Bridge[E, R] {
	c.Pipeline = h.pipeline
	return bridge.New(h.Gate, h.registry, h.wire, c, h.bridgeOptions()...)
}

// NewAPIGatewayHandler returns the Lambda handler for REST API events.
func NewAPIGatewayHandler(opts ...Option) func(context.Context, proxy.Event) (proxy.Response, error) {
	return newAPIGatewayHandler(newHost(NewOptions(opts...)))
}

func newAPIGatewayHandler(h *host) func(context.Context, proxy.Event) (proxy.Response, error) {
	return newBridge(h, proxy.APIGateway(h.proxyOptions()...)).Handle
}

// NewAPIGatewayV2Handler returns the Lambda handler for HTTP API events.
func NewAPIGatewayV2Handler(opts ...Option) func(context.Context, proxy.EventV2) (proxy.ResponseV2, error) {
	h := newHost(NewOptions(opts...))
	return newBridge(h, proxy.APIGatewayV2(h.proxyOptions()...)).Handle
}

// NewInvokeHandler returns the handler for direct invocations with request
// envelopes. It implements lambda.Handler.
func NewInvokeHandler(opts ...Option) *invoke.Handler {
	return newInvokeHandler(newHost(NewOptions(opts...)))
}

func newInvokeHandler(h *host) *invoke.Handler {
	return invoke.NewHandler(newBridge(h, invoke.Collaborators(h.invokeOptions()...)))
}

// NewSQSEngine returns the engine serving SQS batches of request envelopes.
func NewSQSEngine(opts ...Option) *sqs.Engine {
	h := newHost(NewOptions(opts...))
	sqsOpts := append([]sqs.Option{sqs.WithDebugMode(h.DebugMode)}, h.SQS...)
	return sqs.NewEngine(newInvokeHandler(h), sqsOpts...)
}

// Serve hosts the bridge in the configured mode. Lambda modes hand control to
// the Lambda runtime and do not return.
func Serve(opts ...Option) error {
	o := NewOptions(opts...)
	log.Printf("[Server] Serving in %s mode", o.Mode)

	switch o.Mode {
	case ModeAPIGateway:
		lambda.Start(newAPIGatewayHandler(newHost(o)))
	case ModeAPIGatewayV2:
		lambda.Start(NewAPIGatewayV2Handler(opts...))
	case ModeInvoke:
		h := newInvokeHandler(newHost(o))
		mu.Lock()
		invokeHandler = h
		mu.Unlock()
		lambda.Start(h)
	case ModeSQS:
		e := NewSQSEngine(opts...)
		mu.Lock()
		sqsEngine = e
		mu.Unlock()
		lambda.Start(e.Invoke)
	case ModeLocal:
		return serveLocal(o)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, o.Mode)
	}
	return nil
}

func serveLocal(o *Options) error {
	s := &http.Server{
		Addr:    o.Address,
		Handler: newLocalHandler(newHost(o)),
	}
	mu.Lock()
	srv = s
	mu.Unlock()

	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close stops whatever Serve started. Stopped engines refuse further records
// and direct invocations are answered with 503.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if invokeHandler != nil {
		invokeHandler.Stop()
	}
	if sqsEngine != nil {
		sqsEngine.Stop()
	}
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	srv = nil
	return nil
}
