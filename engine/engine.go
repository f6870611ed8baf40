// Package engine provides the gin entry point registered with the bridge.
package engine

import (
	"errors"
	"sync/atomic"

	"github.com/aura-studio/lambda-bridge/registry"
	"github.com/gin-gonic/gin"
)

var ErrAlreadyInitialized = errors.New("engine: already initialized")

type Engine struct {
	*Options
	*gin.Engine
	initialized atomic.Bool
	config      registry.Config
}

func New(opts ...Option) *Engine {
	options := NewOptions(opts...)
	if !options.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	e := &Engine{
		Options: options,
		Engine:  gin.New(),
	}
	e.HandleMethodNotAllowed = true
	if e.DebugMode {
		e.Use(gin.Logger())
	}
	e.Use(gin.Recovery())
	return e
}

// Init installs the handlers. It is called by the registry with the synthetic
// entry point configuration and fails on a second call.
func (e *Engine) Init(cfg registry.Config) error {
	if !e.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	e.config = cfg

	if e.CorsMode {
		e.Use(Cors())
	}
	e.InstallHandlers()
	for _, route := range e.RouteFuncs {
		if route != nil {
			route(e.Engine)
		}
	}
	return nil
}

func (e *Engine) Initialized() bool {
	return e.initialized.Load()
}

// Config returns the configuration Init was called with.
func (e *Engine) Config() registry.Config {
	return e.config
}
