package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"thesis-service/internal/apperr"
	"thesis-service/pkg/logger"
)

// respondError writes the JSON error body for err. Unclassified errors are
// logged and reported as a generic 500.
func respondError(c echo.Context, err error) error {
	log := logger.FromEcho(c)

	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error("Unhandled error", zap.Error(err), zap.String("path", c.Path()))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	var e *apperr.Error
	errors.As(err, &e)

	log.Debug("Request failed", zap.String("error", e.Message), zap.Int("status", apperr.HTTPStatus(kind)))

	body := echo.Map{"error": e.Message}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	return c.JSON(apperr.HTTPStatus(kind), body)
}

// HTTPErrorHandler renders errors returned by handlers and middleware
// that did not write a response themselves.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if he, ok := err.(*echo.HTTPError); ok {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		if he.Code >= http.StatusInternalServerError {
			logger.FromEcho(c).Error("HTTP error", zap.Error(err))
			msg = "internal server error"
		}
		_ = c.JSON(he.Code, echo.Map{"error": msg})
		return
	}
	_ = respondError(c, err)
}
