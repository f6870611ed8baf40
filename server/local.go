package server

import (
	"context"
	"encoding/base64"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aura-studio/lambda-bridge/proxy"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
)

const localStage = "local"

// NewLocalHandler returns an http.Handler that turns live requests into REST
// API events and serves them through the bridge.
func NewLocalHandler(opts ...Option) http.Handler {
	return newLocalHandler(newHost(NewOptions(opts...)))
}

func newLocalHandler(h *host) http.Handler {
	return &localHandler{
		handle:    newAPIGatewayHandler(h),
		debugMode: h.DebugMode,
	}
}

type localHandler struct {
	handle    func(context.Context, proxy.Event) (proxy.Response, error)
	debugMode bool
}

func (h *localHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ev, err := eventFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := lambdacontext.NewContext(r.Context(), &lambdacontext.LambdaContext{
		AwsRequestID: ev.RequestContext.RequestID,
	})
	rsp, err := h.handle(ctx, ev)
	if err != nil {
		log.Printf("[Server] Local request %s failed: %v", ev.RequestContext.RequestID, err)
		if rsp.StatusCode == 0 {
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
	}
	if h.debugMode {
		log.Printf("[Server] %s %s -> %d", r.Method, r.URL.RequestURI(), rsp.StatusCode)
	}
	writeResponse(w, rsp)
}

func eventFromRequest(r *http.Request) (proxy.Event, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return proxy.Event{}, err
	}

	headers := make(map[string]string, len(r.Header)+1)
	multiHeaders := make(map[string][]string, len(r.Header)+1)
	for k, vs := range r.Header {
		headers[k] = strings.Join(vs, ",")
		multiHeaders[k] = append([]string(nil), vs...)
	}
	if r.Host != "" {
		headers["Host"] = r.Host
		multiHeaders["Host"] = []string{r.Host}
	}

	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for k, vs := range query {
		if len(vs) > 0 {
			params[k] = vs[len(vs)-1]
		}
	}

	sourceIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		sourceIP = host
	}

	ev := proxy.Event{
		Resource:                        r.URL.Path,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               multiHeaders,
		QueryStringParameters:           params,
		MultiValueQueryStringParameters: query,
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:  uuid.NewString(),
			Stage:      localStage,
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  sourceIP,
				UserAgent: r.UserAgent(),
			},
		},
	}
	if utf8.Valid(body) {
		ev.Body = string(body)
	} else {
		ev.Body = base64.StdEncoding.EncodeToString(body)
		ev.IsBase64Encoded = true
	}
	return ev, nil
}

func writeResponse(w http.ResponseWriter, rsp proxy.Response) {
	for k, vs := range rsp.MultiValueHeaders {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for k, v := range rsp.Headers {
		if w.Header().Get(k) == "" {
			w.Header().Set(k, v)
		}
	}

	body := []byte(rsp.Body)
	if rsp.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(rsp.Body)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
		body = b
	}

	status := rsp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
