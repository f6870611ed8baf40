// Package proxy adapts API Gateway events to the bridge. REST API (payload
// version 1.0) events go through RequestReader and ResponseWriter, HTTP API
// (payload version 2.0) events through their V2 counterparts.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/aura-studio/lambda-bridge/bridge"
	"github.com/aura-studio/lambda-bridge/capture"
	"github.com/aura-studio/lambda-bridge/security"
	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
)

var (
	ErrMalformedEvent = errors.New("proxy: event carries no method or path")
	ErrClaims         = errors.New("proxy: authorizer claims are not an object")
)

type (
	Event    = events.APIGatewayProxyRequest
	Response = events.APIGatewayProxyResponse
)

// APIGateway returns the collaborators for REST API events.
func APIGateway(opts ...Option) bridge.Collaborators[Event, Response] {
	reader := NewRequestReader(opts...)
	return bridge.Collaborators[Event, Response]{
		RequestReader:    reader,
		ResponseWriter:   ResponseWriter{},
		SecurityWriter:   SecurityContextWriter{},
		ExceptionHandler: ExceptionHandler{DebugMode: reader.DebugMode},
	}
}

type RequestReader struct {
	*Options
	accessor core.RequestAccessor
}

func NewRequestReader(opts ...Option) *RequestReader {
	r := &RequestReader{Options: NewOptions(opts...)}
	if r.StripBasePath != "" {
		r.accessor.StripBasePath(r.StripBasePath)
	}
	return r
}

func (r *RequestReader) ReadRequest(ctx context.Context, ev Event, _ *security.Context) (*http.Request, error) {
	if ev.HTTPMethod == "" || ev.Path == "" {
		return nil, ErrMalformedEvent
	}
	req, err := r.accessor.EventToRequestWithContext(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("proxy.ReadRequest: %w", err)
	}
	if r.DebugMode {
		log.Printf("[Proxy] %s %s (stage %s)", req.Method, req.URL.RequestURI(), ev.RequestContext.Stage)
	}
	return req, nil
}

type ResponseWriter struct{}

func (ResponseWriter) WriteResponse(rsp *capture.Response) (Response, error) {
	w := core.NewProxyResponseWriter()
	if err := rsp.Replay(w); err != nil {
		return Response{}, fmt.Errorf("proxy.WriteResponse: %w", err)
	}
	return w.GetProxyResponse()
}

// SecurityContextWriter resolves the caller from the REST API request context.
// Cognito user pool claims take precedence over a custom authorizer, which
// takes precedence over an IAM caller.
type SecurityContextWriter struct{}

func (SecurityContextWriter) WriteSecurityContext(_ context.Context, ev Event) (*security.Context, error) {
	rc := ev.RequestContext
	sc := &security.Context{
		AuthType:  security.AuthTypeNone,
		SourceIP:  rc.Identity.SourceIP,
		UserAgent: rc.Identity.UserAgent,
		Stage:     rc.Stage,
		RequestID: rc.RequestID,
	}

	if raw, ok := rc.Authorizer["claims"]; ok {
		claims, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrClaims, raw)
		}
		sc.AuthType = security.AuthTypeCognito
		sc.Claims = claims
		sc.Principal = firstString(claims, "sub", "cognito:username", "username")
		return sc, nil
	}

	if len(rc.Authorizer) > 0 {
		sc.AuthType = security.AuthTypeCustom
		sc.Claims = make(map[string]any, len(rc.Authorizer))
		for k, v := range rc.Authorizer {
			sc.Claims[k] = v
		}
		sc.Principal = firstString(rc.Authorizer, "principalId")
		return sc, nil
	}

	if rc.Identity.UserArn != "" {
		sc.AuthType = security.AuthTypeIAM
		sc.Principal = rc.Identity.UserArn
	}
	return sc, nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
