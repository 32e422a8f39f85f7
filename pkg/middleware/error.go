package middleware

import (
	"errors"
	"net/http"

	"knowledge-ledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error. BaseErrors keep their status and message; anything
// else becomes a generic 500 so internal detail never reaches the client.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var base errutil.BaseError
		if errors.As(last.Err, &base) {
			if base.Code.HTTPStatus() >= http.StatusInternalServerError {
				zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(last.Err))
			}
			c.JSON(base.Code.HTTPStatus(), base.JSON())
			return
		}

		zap.L().Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(last.Err))
		internal := errutil.Internal("internal server error", nil).(errutil.BaseError)
		c.JSON(http.StatusInternalServerError, internal.JSON())
	}
}
