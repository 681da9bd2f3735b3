package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/labstack/echo/v4"
)

// APIResponse is the success envelope.
type APIResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// APIError is the failure envelope.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func respond(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, APIResponse{StatusCode: status, Data: data, Message: message, Success: true})
}

func statusOf(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindConflict:
		return http.StatusConflict
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	case common.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error returned by a handler or middleware as
// an APIError. Causes of internal errors are logged, never rendered.
func errorHandler(logger logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := APIError{Status: http.StatusInternalServerError, Message: "Internal server error"}

		var ce *common.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ce):
			body.Status = statusOf(ce.Kind)
			body.Message = ce.Message
		case errors.As(err, &he):
			body.Status = he.Code
			body.Message = fmt.Sprint(he.Message)
		}

		ctx := c.Request().Context()
		if body.Status >= http.StatusInternalServerError {
			logger.Error(ctx, "request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		} else {
			logger.Debug(ctx, "request rejected", "status", body.Status, "error", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(body.Status)
		} else {
			werr = c.JSON(body.Status, body)
		}
		if werr != nil {
			logger.Error(ctx, "failed to write error response", "error", werr)
		}
	}
}
