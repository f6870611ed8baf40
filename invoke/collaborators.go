package invoke

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aura-studio/lambda-bridge/bridge"
	"github.com/aura-studio/lambda-bridge/capture"
	"github.com/aura-studio/lambda-bridge/security"
)

// CorrelationHeader carries the envelope's correlation id on the dispatched request.
const CorrelationHeader = "X-Correlation-Id"

// Collaborators returns the bridge collaborators for request envelopes.
func Collaborators(opts ...Option) bridge.Collaborators[Request, Response] {
	o := NewOptions(opts...)
	return bridge.Collaborators[Request, Response]{
		RequestReader:    &Reader{Options: o},
		ResponseWriter:   Writer{},
		SecurityWriter:   &SecurityWriter{Options: o},
		ExceptionHandler: bridge.JSONExceptionHandler{DebugMode: o.DebugMode},
	}
}

type Reader struct {
	*Options
}

func (r *Reader) ReadRequest(ctx context.Context, req Request, _ *security.Context) (*http.Request, error) {
	if req.err != nil {
		return nil, req.err
	}
	if req.Path == "" {
		return nil, ErrMissingPath
	}
	if !strings.HasPrefix(req.Path, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, req.Path)
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("invoke.ReadRequest: body: %w", err)
		}
		body = b
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
		if len(body) > 0 {
			method = http.MethodPost
		}
	}

	u := &url.URL{Path: req.Path}
	if len(req.Query) > 0 {
		q := url.Values{}
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	hr, err := http.NewRequestWithContext(ctx, method, u.RequestURI(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invoke.ReadRequest: %w", err)
	}
	hr.RequestURI = u.RequestURI()
	for k, v := range req.Header {
		hr.Header.Set(k, v)
	}
	if req.CorrelationID != "" {
		hr.Header.Set(CorrelationHeader, req.CorrelationID)
	}

	if r.DebugMode {
		log.Printf("[Invoke] Request: %s %s", method, hr.RequestURI)
	}
	return hr, nil
}

type Writer struct{}

func (Writer) WriteResponse(rsp *capture.Response) (Response, error) {
	out := Response{StatusCode: rsp.StatusCode()}
	if h := rsp.FinalHeader(); len(h) > 0 {
		out.Header = make(map[string]string, len(h))
		for k, v := range h {
			out.Header[k] = strings.Join(v, ",")
		}
	}

	body := rsp.Body()
	if utf8.Valid(body) {
		out.Body = string(body)
	} else {
		out.Body = base64.StdEncoding.EncodeToString(body)
		out.IsBase64Encoded = true
	}
	return out, nil
}

// SecurityWriter takes the principal from the envelope header named by
// PrincipalHeader.
type SecurityWriter struct {
	*Options
}

func (w *SecurityWriter) WriteSecurityContext(_ context.Context, req Request) (*security.Context, error) {
	sc := &security.Context{
		AuthType:  security.AuthTypeNone,
		RequestID: req.CorrelationID,
		UserAgent: headerValue(req.Header, "User-Agent"),
	}
	if p := headerValue(req.Header, w.PrincipalHeader); p != "" {
		sc.AuthType = security.AuthTypeCustom
		sc.Principal = p
	}
	return sc, nil
}

func headerValue(h map[string]string, key string) string {
	if key == "" {
		return ""
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
