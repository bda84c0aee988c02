package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soyeahso/rentdesk/internal/logging"
	"github.com/soyeahso/rentdesk/internal/metrics"
)

// HeaderRequestID is echoed on every response.
const HeaderRequestID = "X-Request-ID"

const ctxRequestID = "requestId"

// requestID reuses the caller's request id or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// accessLog logs each request and records it in the HTTP metrics.
func accessLog(log *logging.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(start)
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), d)
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", d).
			Str("remote", c.Request.RemoteAddr).
			Str("requestId", c.GetString(ctxRequestID)).
			Msg("http request")
	}
}

// cors answers preflight requests and tags responses for allowed origins.
func cors(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && isOriginAllowed(origin, allowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// isOriginAllowed denies cross-origin requests when no origins are configured.
func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// requireAPIKey guards the /api group. Repeated failures from one address
// are throttled.
func requireAPIKey(key string, limiter *authRateLimiter, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		if !limiter.allow(c.Request.RemoteAddr) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("too many failed authentication attempts"))
			return
		}
		res := Authorize(key, presentedKey(c.GetHeader))
		if !res.OK {
			limiter.recordFailure(c.Request.RemoteAddr)
			log.Warn().Str("remote", c.Request.RemoteAddr).Str("reason", res.Reason).Msg("rejected api request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(res.Reason))
			return
		}
		c.Next()
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"success": false, "error": msg}
}
