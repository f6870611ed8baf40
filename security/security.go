// Package security carries the caller identity extracted from an inbound event
// through to the dispatched request.
package security

import (
	"context"
	"net/http"
)

const (
	AuthTypeNone    = "NONE"
	AuthTypeIAM     = "AWS_IAM"
	AuthTypeCognito = "COGNITO_USER_POOLS"
	AuthTypeJWT     = "JWT"
	AuthTypeCustom  = "CUSTOM"
)

type Context struct {
	Principal string
	AuthType  string
	SourceIP  string
	UserAgent string
	Stage     string
	RequestID string
	Claims    map[string]any
}

// Authenticated reports whether a principal was resolved.
func (c *Context) Authenticated() bool {
	return c != nil && c.Principal != ""
}

// Claim returns the string form of a claim, or "".
func (c *Context) Claim(name string) string {
	if c == nil || c.Claims == nil {
		return ""
	}
	if v, ok := c.Claims[name].(string); ok {
		return v
	}
	return ""
}

type contextKey struct{}

func NewContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

func FromContext(ctx context.Context) (*Context, bool) {
	sc, ok := ctx.Value(contextKey{}).(*Context)
	return sc, ok && sc != nil
}

func FromRequest(r *http.Request) (*Context, bool) {
	if r == nil {
		return nil, false
	}
	return FromContext(r.Context())
}
