package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aura-studio/lambda-bridge/bootstrap"
	"github.com/aura-studio/lambda-bridge/engine"
	"github.com/aura-studio/lambda-bridge/invoke"
	"github.com/aura-studio/lambda-bridge/server"
	"github.com/aura-studio/lambda-bridge/server/client"
	"github.com/gin-gonic/gin"
)

func newLocal(t *testing.T) *httptest.Server {
	t.Helper()
	h := server.NewLocalHandler(
		server.WithGate(bootstrap.NewGate()),
		server.WithEngineOptions(engine.WithRoutes(func(r *gin.Engine) {
			r.PUT("/orders/:id", func(c *gin.Context) {
				body, _ := io.ReadAll(c.Request.Body)
				c.Header("X-Trace", c.GetHeader("X-Trace"))
				c.String(http.StatusAccepted, "%s %s %s", c.Param("id"), c.Query("dry"), body)
			})
			r.GET("/slow", func(c *gin.Context) {
				time.Sleep(300 * time.Millisecond)
				c.Status(http.StatusOK)
			})
		})),
	)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func TestClientCall(t *testing.T) {
	ts := newLocal(t)
	c := client.NewClient(client.WithBaseURL(ts.URL), client.WithHeader("X-Trace", "t-1"))

	rsp, err := c.Call(context.Background(), invoke.Request{
		Path:   "/orders/7",
		Method: http.MethodPut,
		Query:  map[string]string{"dry": "yes"},
		Body:   "payload",
	})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if rsp.StatusCode != http.StatusAccepted || rsp.Body != "7 yes payload" {
		t.Errorf("response = %d %q", rsp.StatusCode, rsp.Body)
	}
	if rsp.Header["X-Trace"] != "t-1" {
		t.Errorf("X-Trace = %q", rsp.Header["X-Trace"])
	}
	if rsp.CorrelationID == "" {
		t.Error("CorrelationID not generated")
	}
}

func TestClientCallTimeout(t *testing.T) {
	ts := newLocal(t)
	c := client.NewClient(client.WithBaseURL(ts.URL), client.WithDefaultTimeout(50*time.Millisecond))

	if _, err := c.Call(context.Background(), invoke.Request{Path: "/slow"}); !errors.Is(err, client.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestClientCallBadBody(t *testing.T) {
	c := client.NewClient(client.WithBaseURL("http://127.0.0.1:1"))

	if _, err := c.Call(context.Background(), invoke.Request{Path: "/x", Body: "%%", IsBase64Encoded: true}); err == nil {
		t.Fatal("Call accepted an invalid base64 body")
	}
}
