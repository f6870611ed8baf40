package server

import (
	"time"

	"github.com/aura-studio/lambda-bridge/bootstrap"
	"github.com/aura-studio/lambda-bridge/bridge"
	"github.com/aura-studio/lambda-bridge/dispatch"
	"github.com/aura-studio/lambda-bridge/engine"
	"github.com/aura-studio/lambda-bridge/invoke"
	"github.com/aura-studio/lambda-bridge/proxy"
	"github.com/aura-studio/lambda-bridge/registry"
	"github.com/aura-studio/lambda-bridge/sqs"
	"github.com/mohae/deepcopy"
)

const (
	ModeAPIGateway   = "apigateway"
	ModeAPIGatewayV2 = "apigatewayv2"
	ModeInvoke       = "invoke"
	ModeSQS          = "sqs"
	ModeLocal        = "local"
)

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

type Options struct {
	Mode           string
	Address        string
	Timeout        time.Duration
	DeadlineMargin time.Duration
	DebugMode      bool

	// Gate guards the one-time wiring of this host's registry. Nil means the
	// process-wide gate of that registry.
	Gate *bootstrap.Gate
	// EntryPoint builds the registered entry point. Nil builds a gin engine
	// from the Engine options.
	EntryPoint registry.Factory

	Engine   []engine.Option
	Dispatch []dispatch.Option
	Proxy    []proxy.Option
	Invoke   []invoke.Option
	SQS      []sqs.Option
	Bridge   []bridge.Option
}

var defaultOptions = &Options{
	Mode:           ModeAPIGateway,
	Address:        ":8080",
	Timeout:        30 * time.Second,
	DeadlineMargin: 50 * time.Millisecond,
	DebugMode:      false,
}

func NewOptions(opts ...Option) *Options {
	options := deepcopy.Copy(defaultOptions).(*Options)
	options.init(opts...)
	return options
}

func (o *Options) init(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
}

// -------------- Server Options ----------------
func WithMode(mode string) Option {
	return OptionFunc(func(o *Options) {
		o.Mode = mode
	})
}

// WithAddress sets the listen address of the local mode.
func WithAddress(addr string) Option {
	return OptionFunc(func(o *Options) {
		o.Address = addr
	})
}

func WithTimeout(d time.Duration) Option {
	return OptionFunc(func(o *Options) {
		o.Timeout = d
	})
}

func WithDeadlineMargin(d time.Duration) Option {
	return OptionFunc(func(o *Options) {
		o.DeadlineMargin = d
	})
}

func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}

func WithGate(gate *bootstrap.Gate) Option {
	return OptionFunc(func(o *Options) {
		o.Gate = gate
	})
}

func WithEntryPoint(f registry.Factory) Option {
	return OptionFunc(func(o *Options) {
		o.EntryPoint = f
	})
}

func WithEngineOptions(opts ...engine.Option) Option {
	return OptionFunc(func(o *Options) {
		o.Engine = append(o.Engine, opts...)
	})
}

func WithDispatchOptions(opts ...dispatch.Option) Option {
	return OptionFunc(func(o *Options) {
		o.Dispatch = append(o.Dispatch, opts...)
	})
}

func WithProxyOptions(opts ...proxy.Option) Option {
	return OptionFunc(func(o *Options) {
		o.Proxy = append(o.Proxy, opts...)
	})
}

func WithInvokeOptions(opts ...invoke.Option) Option {
	return OptionFunc(func(o *Options) {
		o.Invoke = append(o.Invoke, opts...)
	})
}

func WithSQSOptions(opts ...sqs.Option) Option {
	return OptionFunc(func(o *Options) {
		o.SQS = append(o.SQS, opts...)
	})
}

func WithBridgeOptions(opts ...bridge.Option) Option {
	return OptionFunc(func(o *Options) {
		o.Bridge = append(o.Bridge, opts...)
	})
}
