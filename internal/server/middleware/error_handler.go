package middleware

import (
	"errors"
	"net/http"

	"ar-io-observer/logging"

	"github.com/labstack/echo/v4"
)

// TransparentErrorHandler writes handler errors as {"error": "<message>"}.
// An *echo.HTTPError keeps its status code and message; anything else is a
// 500 carrying the error string.
func TransparentErrorHandler(err error, c echo.Context) {
	status, message := ExtractError(err)
	if c.Response().Committed {
		return
	}
	if status >= http.StatusInternalServerError {
		logging.Error("Request failed", logging.Server, "path", c.Request().URL.Path, "error", err)
	}
	_ = c.JSON(status, map[string]interface{}{"error": message})
}

func ExtractError(err error) (int, interface{}) {
	var (
		status              = http.StatusInternalServerError
		message interface{} = err.Error()
	)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if he.Message != nil {
			message = he.Message
		}
	}

	return status, message
}
