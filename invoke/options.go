package invoke

import "github.com/mohae/deepcopy"

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

type Options struct {
	// PrincipalHeader names the envelope header carrying the caller identity.
	PrincipalHeader string
	DebugMode       bool
}

var defaultOptions = &Options{
	PrincipalHeader: "X-Principal",
	DebugMode:       false,
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

// -------------- Invoke Options ----------------
func WithPrincipalHeader(header string) Option {
	return OptionFunc(func(o *Options) {
		o.PrincipalHeader = header
	})
}

func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}
