package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"ecom-admin-proxy/internal/model"
)

// ErrorHandler returns an echo.HTTPErrorHandler that renders every error in
// the failure envelope: statuses below 500 as Client.Error, the rest as Server.Error.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := http.StatusText(status)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			msg = httpErrorMessage(he)
		} else {
			logger.Error("unhandled error", "err", err, "path", c.Request().URL.Path)
		}

		typ := model.ClientError
		if status >= http.StatusInternalServerError {
			typ = model.ServerError
		}
		result := model.Failure(status, typ, msg)

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, result.Body())
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}
