package logging

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/pkcelogin/internal/util"
	log "github.com/sirupsen/logrus"
)

// GinLogrusLogger returns a Gin middleware handler that logs callback requests
// using logrus. Sensitive query values (code, state, tokens) are masked.
//
// Output format: [2025-12-23 20:14:10] [--------] [info ] | 200 |      1ms | GET "/callback?code=ab...yz&state=Qm...9w"
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := util.MaskSensitiveQuery(c.Request.URL.RawQuery)

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		latency := time.Since(start).Truncate(time.Millisecond)
		statusCode := c.Writer.Status()
		logLine := fmt.Sprintf("| %3d | %8v | %-7s \"%s\"", statusCode, latency, c.Request.Method, path)

		entry := FromContext(c.Request.Context())
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(logLine)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(logLine)
		default:
			entry.Info(logLine)
		}
	}
}

// GinLogrusRecovery returns a Gin middleware handler that recovers from panics and logs
// them using logrus, answering 500 to the browser.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			// Let net/http handle ErrAbortHandler so the connection is aborted without noisy stack logs.
			panic(http.ErrAbortHandler)
		}

		log.WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// GinFlowID attaches flowID to every request context so handler logs carry it.
func GinFlowID(flowID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if flowID != "" {
			c.Request = c.Request.WithContext(WithFlowID(c.Request.Context(), flowID))
		}
		c.Next()
	}
}
