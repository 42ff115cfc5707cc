package logging

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderRequestID is read from and echoed back on every request.
const HeaderRequestID = "X-Request-ID"

// GinMiddleware attaches a request-scoped logger to every request. The
// logger carries the request id and, on lead routes, the lead id and
// network, so everything the enrichment service logs for the request can be
// correlated. Completed requests are logged at a level chosen by status;
// paths in quiet are only logged when they fail.
func GinMiddleware(logger zerolog.Logger, quiet ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(HeaderRequestID, reqID)

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldRoute, c.FullPath()).
			Logger()
		ctx := WithLogger(c.Request.Context(), child)

		if leadID, network := c.Param("leadID"), c.Param("network"); leadID != "" && network != "" {
			ctx, child = WithLead(ctx, leadID, network)
		} else if network != "" {
			child = child.With().Str(FieldNetwork, network).Logger()
			ctx = WithLogger(ctx, child)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest && slices.Contains(quiet, c.Request.URL.Path) {
			return
		}

		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = child.Error()
		case status >= http.StatusBadRequest:
			ev = child.Warn()
		default:
			ev = child.Info()
		}
		ev.Int(FieldStatus, status).
			Int64(FieldLatency, time.Since(start).Milliseconds()).
			Str(FieldClientIP, c.ClientIP()).
			Msg("request completed")
	}
}
