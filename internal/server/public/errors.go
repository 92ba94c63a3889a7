package public

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrReportNotFound = echo.NewHTTPError(http.StatusNotFound, "Report not found")
	ErrInvalidLimit   = echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
)
