// Package dispatch runs translated requests through the filter chain and the
// registered entry point. Dispatch returns as soon as processing has started;
// completion is reported through the response capture.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/aura-studio/lambda-bridge/capture"
	"github.com/aura-studio/lambda-bridge/registry"
)

type Pipeline struct {
	*Options
	registry *registry.Registry
}

func New(reg *registry.Registry, opts ...Option) *Pipeline {
	return &Pipeline{
		Options:  NewOptions(opts...),
		registry: reg,
	}
}

// Dispatch looks up the entry point and starts serving req into rsp. A lookup
// failure is returned without touching rsp.
func (p *Pipeline) Dispatch(ctx context.Context, req *http.Request, rsp *capture.Response) error {
	if p.registry == nil {
		return registry.ErrNotFound
	}
	ep, err := p.registry.Lookup(p.registry.Name())
	if err != nil {
		return err
	}

	h := p.chain(ep)
	go p.serve(h, req, rsp)
	return nil
}

func (p *Pipeline) chain(h http.Handler) http.Handler {
	filters := make([]Filter, 0, len(p.Filters)+3)
	if len(p.HeaderLinkMap) > 0 {
		filters = append(filters, HeaderLink(p.HeaderLinkMap))
	}
	if len(p.StaticLinkMap) > 0 {
		filters = append(filters, StaticLink(p.StaticLinkMap))
	}
	if len(p.PrefixLinkMap) > 0 {
		filters = append(filters, PrefixLink(p.PrefixLinkMap))
	}
	filters = append(filters, p.Filters...)

	for i := len(filters) - 1; i >= 0; i-- {
		if filters[i] != nil {
			h = filters[i](h)
		}
	}
	return h
}

func (p *Pipeline) serve(h http.Handler, req *http.Request, rsp *capture.Response) {
	defer rsp.FinalizeAndSignal()

	if err := p.doSafe(func() { h.ServeHTTP(rsp, req) }); err != nil {
		log.Printf("[Dispatch] %s %s: %v", req.Method, req.URL.Path, err)
		rsp.Fail(err)
	}
}

func (p *Pipeline) doSafe(f func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if p.DebugMode {
				log.Printf("[Dispatch] Recovered: %v\n%s", v, debug.Stack())
			}
			err = fmt.Errorf("panic: %v", v)
		}
	}()

	f()

	return nil
}
