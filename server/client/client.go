// Package client calls a bridge served in local mode with the same request
// envelopes the Lambda and SQS clients use.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aura-studio/lambda-bridge/invoke"
	"github.com/google/uuid"
)

var ErrTimeout = errors.New("client: request timeout")

type Client struct {
	*Options
}

func NewClient(opts ...Option) *Client {
	return &Client{
		Options: NewOptions(opts...),
	}
}

// Call sends req over HTTP. A missing correlation id is filled in and echoed
// on the response.
func (c *Client) Call(ctx context.Context, req invoke.Request) (invoke.Response, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	timeout := c.DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hr, err := c.newRequest(ctx, req)
	if err != nil {
		return invoke.Response{}, err
	}

	resp, err := c.HTTPClient.Do(hr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return invoke.Response{}, ErrTimeout
		}
		return invoke.Response{}, fmt.Errorf("client.Call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invoke.Response{}, fmt.Errorf("client.Call: read body: %w", err)
	}

	rsp := invoke.Response{
		StatusCode:    resp.StatusCode,
		Header:        make(map[string]string, len(resp.Header)),
		CorrelationID: req.CorrelationID,
	}
	for k, vs := range resp.Header {
		rsp.Header[k] = strings.Join(vs, ",")
	}
	if utf8.Valid(body) {
		rsp.Body = string(body)
	} else {
		rsp.Body = base64.StdEncoding.EncodeToString(body)
		rsp.IsBase64Encoded = true
	}
	return rsp, nil
}

func (c *Client) newRequest(ctx context.Context, req invoke.Request) (*http.Request, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("client.Call: decode body: %w", err)
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

	u := c.BaseURL + req.Path
	if len(req.Query) > 0 {
		q := url.Values{}
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	hr, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("client.Call: %w", err)
	}

	for k, v := range c.Headers {
		hr.Header.Set(k, v)
	}
	for k, v := range req.Header {
		hr.Header.Set(k, v)
	}
	hr.Header.Set(invoke.CorrelationHeader, req.CorrelationID)
	return hr, nil
}
