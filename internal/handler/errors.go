package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
)

// NewErrorHandler renders every error as an Envelope. Internal
// details are included only when exposeDetails is set.
func NewErrorHandler(log *zap.Logger, exposeDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		env := Envelope{Success: false, Timestamp: now()}
		status := http.StatusInternalServerError

		var he *echo.HTTPError
		if ae, ok := apperror.As(err); ok {
			status = ae.Status
			env.Code = ae.Code
			env.Message = ae.Message
			env.Errors = ae.Fields
			if status >= http.StatusInternalServerError {
				log.Error("request failed",
					zap.String("method", c.Request().Method),
					zap.String("path", c.Request().URL.Path),
					zap.String("code", ae.Code),
					zap.Error(err))
				if exposeDetails {
					env.Details = ae.Details
				}
			}
		} else if errors.As(err, &he) {
			status = he.Code
			env.Message = fmt.Sprint(he.Message)
			if he.Internal != nil && status >= http.StatusInternalServerError {
				log.Error("request failed", zap.Error(he.Internal))
			}
		} else {
			log.Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
			env.Message = "internal server error"
			if exposeDetails {
				env.Details = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, env)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}
