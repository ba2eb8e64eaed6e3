package middleware

import (
	"time"

	C "mta/config"
	U "mta/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// scope constants.
const SCOPE_REQ_ID = "requestId"

const HeaderRequestID = "X-Request-Id"

// RequestIdGenerator - Uses the incoming request id header when present, generates one otherwise.
func RequestIdGenerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get(HeaderRequestID)
		if reqID == "" || !U.IsValidUUID(reqID) {
			reqID = U.GetUUID()
		}
		U.SetScope(c, SCOPE_REQ_ID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// Logger - logs every request with its latency and status.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		logCtx := log.WithFields(log.Fields{
			"reqId":     U.GetScopeByKeyAsString(c, SCOPE_REQ_ID),
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latencyMs": time.Since(startTime).Milliseconds(),
		})
		if c.Writer.Status() >= 500 {
			logCtx.Error("Request failed.")
			return
		}
		logCtx.Info("Request served.")
	}
}

// CustomCors allows local frontends in development.
func CustomCors() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if C.IsDevelopment() {
		corsConfig.AllowOrigins = []string{"http://localhost:8080", "http://localhost:3000"}
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost"}
	}
	corsConfig.AddAllowHeaders(HeaderRequestID)
	corsConfig.AddExposeHeaders(HeaderRequestID)
	return cors.New(corsConfig)
}
