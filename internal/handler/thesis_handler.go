package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"thesis-service/internal/schema"
	"thesis-service/internal/service"
)

// ThesisHandler serves /api/thesis.
type ThesisHandler struct {
	theses *service.ThesisService
}

func NewThesisHandler(theses *service.ThesisService) *ThesisHandler {
	return &ThesisHandler{theses: theses}
}

// Get handles GET /api/thesis
func (h *ThesisHandler) Get(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	studentID, err := targetStudent(c, caller)
	if err != nil {
		return respondError(c, err)
	}

	thesis, err := h.theses.Get(c.Request().Context(), studentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, schema.FromThesis(*thesis))
}
