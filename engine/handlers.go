package engine

import (
	"net/http"

	"github.com/aura-studio/lambda-bridge/bridge"
	"github.com/aura-studio/lambda-bridge/security"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/sjson"
)

var methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead, http.MethodOptions}

func (e *Engine) InstallHandlers() {
	e.HandleAllMethods("/", e.OK)
	e.HandleAllMethods("/health-check", e.OK)
	if e.DebugMode {
		e.HandleAllMethods("/_/debug", e.Debug)
	}
	e.NoRoute(e.PageNotFound)
	e.NoMethod(e.MethodNotAllowed)
}

func (e *Engine) HandleAllMethods(relativePath string, handlers ...gin.HandlerFunc) {
	for _, method := range methods {
		e.Handle(method, relativePath, handlers...)
	}
}

func (e *Engine) OK(c *gin.Context) {
	c.String(http.StatusOK, "OK")
	c.Abort()
}

// Debug echoes what the entry point received.
func (e *Engine) Debug(c *gin.Context) {
	body := `{}`
	set := func(path string, v any) {
		body, _ = sjson.Set(body, path, v)
	}

	if e.config != nil {
		set("entryPoint", e.config.Name())
	}
	set("method", c.Request.Method)
	set("path", c.Request.URL.Path)
	set("query", c.Request.URL.RawQuery)
	set("host", c.Request.Host)
	set("remoteAddr", c.Request.RemoteAddr)
	set("header", c.Request.Header)
	if id, ok := bridge.InvocationIDFromContext(c.Request.Context()); ok {
		set("invocationId", id)
	}
	if sc, ok := security.FromRequest(c.Request); ok && sc != nil {
		set("security.principal", sc.Principal)
		set("security.authType", sc.AuthType)
		set("security.sourceIp", sc.SourceIP)
	}

	c.Data(http.StatusOK, "application/json", []byte(body))
	c.Abort()
}

func (e *Engine) PageNotFound(c *gin.Context) {
	if e.PageNotFoundPath != "" && c.Request.URL.Path != e.PageNotFoundPath {
		c.Request.URL.Path = e.PageNotFoundPath
		e.HandleContext(c)
		c.Abort()
		return
	}
	c.String(http.StatusNotFound, "404 page not found")
	c.Abort()
}

func (e *Engine) MethodNotAllowed(c *gin.Context) {
	c.String(http.StatusMethodNotAllowed, "405 method not allowed")
	c.Abort()
}
