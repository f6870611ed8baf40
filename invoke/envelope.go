// Package invoke serves direct Lambda invocations whose payload is a JSON
// envelope describing one HTTP request.
//
//	{"path": "/orders", "method": "POST", "header": {"X-Principal": "svc"},
//	 "query": {"page": "2"}, "body": "...", "isBase64Encoded": false,
//	 "correlationId": "...", "replyTo": "..."}
//
// The answer is {"statusCode": 200, "header": {...}, "body": "...",
// "isBase64Encoded": false, "correlationId": "..."}.
package invoke

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrInvalidJSON = errors.New("invoke: payload is not a JSON object")
	ErrMissingPath = errors.New("invoke: payload has no path")
	ErrInvalidPath = errors.New("invoke: path must start with /")
)

type Request struct {
	Path            string            `json:"path"`
	Method          string            `json:"method,omitempty"`
	Header          map[string]string `json:"header,omitempty"`
	Query           map[string]string `json:"query,omitempty"`
	Body            string            `json:"body,omitempty"`
	IsBase64Encoded bool              `json:"isBase64Encoded,omitempty"`
	CorrelationID   string            `json:"correlationId,omitempty"`
	// ReplyTo names the queue an asynchronous transport answers on.
	ReplyTo string `json:"replyTo,omitempty"`

	err error
}

type Response struct {
	StatusCode      int               `json:"statusCode"`
	Header          map[string]string `json:"header,omitempty"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded,omitempty"`
	CorrelationID   string            `json:"correlationId,omitempty"`
}

// Parse decodes a request envelope. Unknown fields are ignored.
func Parse(b []byte) (Request, error) {
	if !gjson.ValidBytes(b) {
		return Request{}, ErrInvalidJSON
	}
	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return Request{}, ErrInvalidJSON
	}
	path := root.Get("path")
	if !path.Exists() || path.String() == "" {
		return Request{}, ErrMissingPath
	}

	return Request{
		Path:            path.String(),
		Method:          root.Get("method").String(),
		Header:          stringMap(root.Get("header")),
		Query:           stringMap(root.Get("query")),
		Body:            root.Get("body").String(),
		IsBase64Encoded: root.Get("isBase64Encoded").Bool(),
		CorrelationID:   root.Get("correlationId").String(),
		ReplyTo:         root.Get("replyTo").String(),
	}, nil
}

// ParseResponse decodes a response envelope.
func ParseResponse(b []byte) (Response, error) {
	if !gjson.ValidBytes(b) {
		return Response{}, ErrInvalidJSON
	}
	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return Response{}, ErrInvalidJSON
	}
	return Response{
		StatusCode:      int(root.Get("statusCode").Int()),
		Header:          stringMap(root.Get("header")),
		Body:            root.Get("body").String(),
		IsBase64Encoded: root.Get("isBase64Encoded").Bool(),
		CorrelationID:   root.Get("correlationId").String(),
	}, nil
}

// Encode renders rsp as a response envelope.
func Encode(rsp Response) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, v)
		}
	}

	set("statusCode", rsp.StatusCode)
	if len(rsp.Header) > 0 {
		set("header", rsp.Header)
	}
	set("body", rsp.Body)
	if rsp.IsBase64Encoded {
		set("isBase64Encoded", true)
	}
	if rsp.CorrelationID != "" {
		set("correlationId", rsp.CorrelationID)
	}
	if err != nil {
		return nil, fmt.Errorf("invoke.Encode: %w", err)
	}
	return b, nil
}

// EncodeRequest renders req as a request envelope.
func EncodeRequest(req Request) ([]byte, error) {
	b := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, v)
		}
	}

	set("path", req.Path)
	if req.Method != "" {
		set("method", req.Method)
	}
	if len(req.Header) > 0 {
		set("header", req.Header)
	}
	if len(req.Query) > 0 {
		set("query", req.Query)
	}
	if req.Body != "" {
		set("body", req.Body)
	}
	if req.IsBase64Encoded {
		set("isBase64Encoded", true)
	}
	if req.CorrelationID != "" {
		set("correlationId", req.CorrelationID)
	}
	if req.ReplyTo != "" {
		set("replyTo", req.ReplyTo)
	}
	if err != nil {
		return nil, fmt.Errorf("invoke.EncodeRequest: %w", err)
	}
	return b, nil
}

func stringMap(r gjson.Result) map[string]string {
	if !r.IsObject() {
		return nil
	}
	m := map[string]string{}
	r.ForEach(func(key, value gjson.Result) bool {
		m[key.String()] = value.String()
		return true
	})
	return m
}
