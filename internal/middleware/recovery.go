package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/logger"
	"github.com/charlesng35/studynotify/pkg/response"
)

// Recovery turns handler panics into a 500 envelope. Panics after the response started (a
// hijacked feed connection) are only logged; http.ErrAbortHandler is re-raised for net/http.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			}
			if subject := c.GetString(CtxSubjectKey); subject != "" {
				fields = append(fields, zap.String("subject", subject))
			}
			if userID := c.Param("id"); userID != "" {
				fields = append(fields, zap.String("user_id", userID))
			}
			logger.WithModule("http").Error("handler panic", fields...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, apperrors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the JSON error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.New(
		apperrors.ErrNotFound.Code,
		fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path),
		http.StatusNotFound,
	))
}
