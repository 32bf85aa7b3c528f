package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"

	"github.com/sabanago/ride-sharing/pkg/common"
)

// RequestTimeout aborts requests that exceed the configured duration with a
// 504. Handlers observe the deadline through the request context.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		d = 15 * time.Second
	}

	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithHandler(func(c *gin.Context) {
			c.Next()
		}),
		timeout.WithResponse(func(c *gin.Context) {
			c.Header("X-Timeout", "true")
			common.ErrorResponseWithCode(c, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "request took too long to process")
		}),
	)
}
