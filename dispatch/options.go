package dispatch

import "github.com/mohae/deepcopy"

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

type Options struct {
	StaticLinkMap map[string]string
	PrefixLinkMap map[string]string
	HeaderLinkMap map[string]string
	Filters       []Filter
	DebugMode     bool
}

var defaultOptions = &Options{
	StaticLinkMap: map[string]string{},
	PrefixLinkMap: map[string]string{},
	HeaderLinkMap: map[string]string{},
	Filters:       []Filter{},
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

// -------------- Dispatch Options ----------------
func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}

func WithStaticLink(srcPath, dstPath string) Option {
	return OptionFunc(func(o *Options) {
		o.StaticLinkMap[srcPath] = dstPath
	})
}

func WithPrefixLink(srcPrefix string, dstPrefix string) Option {
	return OptionFunc(func(o *Options) {
		o.PrefixLinkMap[srcPrefix] = dstPrefix
	})
}

func WithHeaderLinkKey(key string, prefix string) Option {
	return OptionFunc(func(o *Options) {
		o.HeaderLinkMap[key] = prefix
	})
}

// WithFilter appends filters that run after the link filters, outermost first.
func WithFilter(filters ...Filter) Option {
	return OptionFunc(func(o *Options) {
		o.Filters = append(o.Filters, filters...)
	})
}
