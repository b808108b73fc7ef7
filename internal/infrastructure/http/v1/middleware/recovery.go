// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"encaissement/internal/core/apperror"
	"encaissement/pkg/logger"
)

// Recovery middleware recovers from panics and returns 500 error.
// Logs stack trace but never exposes internal details to client.
//
// The response is written here directly: a panic unwinds past the error
// rendering that runs after ErrorHandler's c.Next(), so registering the
// error on the context would leave the client with an empty response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				appErr := apperror.NewInternal(fmt.Errorf("panic: %v", err)).
					WithDetail("request_id", c.GetString("request_id"))
				_ = c.Error(appErr)
				if !c.Writer.Written() {
					c.JSON(appErr.HTTPStatus, gin.H{
						"code":    appErr.Code,
						"message": appErr.Message,
						"details": appErr.Details,
					})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
