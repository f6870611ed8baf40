package engine

import (
	"github.com/gin-gonic/gin"
	"github.com/mohae/deepcopy"
)

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

// RouteFunc registers application routes on the gin engine during Init.
type RouteFunc func(r *gin.Engine)

type Options struct {
	DebugMode        bool
	CorsMode         bool
	PageNotFoundPath string
	RouteFuncs       []RouteFunc
}

var defaultOptions = &Options{
	DebugMode:        false,
	CorsMode:         false,
	PageNotFoundPath: "",
	RouteFuncs:       []RouteFunc{},
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

// -------------- Engine Options ----------------
func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}

func WithCors() Option {
	return OptionFunc(func(o *Options) {
		o.CorsMode = true
	})
}

func WithPageNotFoundPath(path string) Option {
	return OptionFunc(func(o *Options) {
		o.PageNotFoundPath = path
	})
}

func WithRoutes(routes ...RouteFunc) Option {
	return OptionFunc(func(o *Options) {
		o.RouteFuncs = append(o.RouteFuncs, routes...)
	})
}
