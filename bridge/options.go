package bridge

import (
	"time"

	"github.com/mohae/deepcopy"
)

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

// StateHook observes every state transition of every invocation. It runs on
// the invocation goroutine.
type StateHook func(inv *Invocation)

type Options struct {
	// Timeout bounds the wait when the caller's context carries no deadline.
	Timeout time.Duration
	// DeadlineMargin is kept back from the caller's deadline to write the response.
	DeadlineMargin time.Duration
	DebugMode      bool
	StateHook      StateHook
}

var defaultOptions = &Options{
	Timeout:        30 * time.Second,
	DeadlineMargin: 50 * time.Millisecond,
	DebugMode:      false,
	StateHook:      nil,
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
	if o.Timeout <= 0 {
		o.Timeout = defaultOptions.Timeout
	}
	if o.DeadlineMargin < 0 {
		o.DeadlineMargin = 0
	}
}

// -------------- Bridge Options ----------------
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

func WithStateHook(hook StateHook) Option {
	return OptionFunc(func(o *Options) {
		o.StateHook = hook
	})
}
