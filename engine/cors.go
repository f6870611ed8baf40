package engine

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	corsAllowHeaders = []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "Origin", "X-Requested-With"}
	corsMaxAge       = 10 * time.Minute
)

// Cors allows cross-origin requests from any origin and answers preflight
// requests directly.
func Cors() gin.HandlerFunc {
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(corsAllowHeaders, ", ")
	maxAge := strconv.Itoa(int(corsMaxAge / time.Second))

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)

		if c.Request.Method == http.MethodOptions && c.Request.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
