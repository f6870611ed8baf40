package proxy

import "github.com/mohae/deepcopy"

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

type Options struct {
	// StripBasePath is removed from the event path before dispatch, e.g. a
	// custom domain base path mapping.
	StripBasePath string
	DebugMode     bool
}

var defaultOptions = &Options{
	StripBasePath: "",
	DebugMode:     false,
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

// -------------- Proxy Options ----------------
func WithStripBasePath(basePath string) Option {
	return OptionFunc(func(o *Options) {
		o.StripBasePath = basePath
	})
}

func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}
