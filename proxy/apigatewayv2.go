package proxy

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/aura-studio/lambda-bridge/bridge"
	"github.com/aura-studio/lambda-bridge/capture"
	"github.com/aura-studio/lambda-bridge/security"
	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
)

type (
	EventV2    = events.APIGatewayV2HTTPRequest
	ResponseV2 = events.APIGatewayV2HTTPResponse
)

// APIGatewayV2 returns the collaborators for HTTP API events.
func APIGatewayV2(opts ...Option) bridge.Collaborators[EventV2, ResponseV2] {
	reader := NewRequestReaderV2(opts...)
	return bridge.Collaborators[EventV2, ResponseV2]{
		RequestReader:    reader,
		ResponseWriter:   ResponseWriterV2{},
		SecurityWriter:   SecurityContextWriterV2{},
		ExceptionHandler: ExceptionHandler{DebugMode: reader.DebugMode},
	}
}

type RequestReaderV2 struct {
	*Options
	accessor core.RequestAccessorV2
}

func NewRequestReaderV2(opts ...Option) *RequestReaderV2 {
	r := &RequestReaderV2{Options: NewOptions(opts...)}
	if r.StripBasePath != "" {
		r.accessor.StripBasePath(r.StripBasePath)
	}
	return r
}

func (r *RequestReaderV2) ReadRequest(ctx context.Context, ev EventV2, _ *security.Context) (*http.Request, error) {
	if ev.RequestContext.HTTP.Method == "" || ev.RawPath == "" {
		return nil, ErrMalformedEvent
	}
	req, err := r.accessor.EventToRequestWithContext(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("proxy.ReadRequestV2: %w", err)
	}
	if r.DebugMode {
		log.Printf("[Proxy] %s %s (route %s)", req.Method, req.URL.RequestURI(), ev.RouteKey)
	}
	return req, nil
}

type ResponseWriterV2 struct{}

func (ResponseWriterV2) WriteResponse(rsp *capture.Response) (ResponseV2, error) {
	w := core.NewProxyResponseWriterV2()
	if err := rsp.Replay(w); err != nil {
		return ResponseV2{}, fmt.Errorf("proxy.WriteResponseV2: %w", err)
	}
	return w.GetProxyResponse()
}

// SecurityContextWriterV2 resolves the caller from a JWT, IAM or Lambda
// authorizer, in that order.
type SecurityContextWriterV2 struct{}

func (SecurityContextWriterV2) WriteSecurityContext(_ context.Context, ev EventV2) (*security.Context, error) {
	rc := ev.RequestContext
	sc := &security.Context{
		AuthType:  security.AuthTypeNone,
		SourceIP:  rc.HTTP.SourceIP,
		UserAgent: rc.HTTP.UserAgent,
		Stage:     rc.Stage,
		RequestID: rc.RequestID,
	}

	a := rc.Authorizer
	switch {
	case a == nil:
	case a.JWT != nil:
		sc.AuthType = security.AuthTypeJWT
		sc.Claims = make(map[string]any, len(a.JWT.Claims)+1)
		for k, v := range a.JWT.Claims {
			sc.Claims[k] = v
		}
		if len(a.JWT.Scopes) > 0 {
			sc.Claims["scope"] = strings.Join(a.JWT.Scopes, " ")
		}
		sc.Principal = a.JWT.Claims["sub"]
	case a.IAM != nil:
		sc.AuthType = security.AuthTypeIAM
		sc.Principal = a.IAM.UserARN
	case len(a.Lambda) > 0:
		sc.AuthType = security.AuthTypeCustom
		sc.Claims = make(map[string]any, len(a.Lambda))
		for k, v := range a.Lambda {
			sc.Claims[k] = v
		}
		sc.Principal = firstString(a.Lambda, "principalId", "sub")
	}
	return sc, nil
}
