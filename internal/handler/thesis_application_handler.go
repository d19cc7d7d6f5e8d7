package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"thesis-service/internal/apperr"
	"thesis-service/internal/middleware"
	"thesis-service/internal/model"
	"thesis-service/internal/schema"
	"thesis-service/internal/service"
	"thesis-service/pkg/logger"
)

// ThesisApplicationHandler serves /api/thesis-applications.
type ThesisApplicationHandler struct {
	applications *service.ApplicationService
}

func NewThesisApplicationHandler(applications *service.ApplicationService) *ThesisApplicationHandler {
	return &ThesisApplicationHandler{applications: applications}
}

type teacherRef struct {
	ID uint `json:"id" validate:"gt=0"`
}

type companyRef struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Address *string `json:"address" validate:"omitempty,max=255"`
}

type proposalRef struct {
	ID uint `json:"id" validate:"gt=0"`
}

type createApplicationRequest struct {
	Topic            string       `json:"topic" validate:"required,max=255"`
	StudentID        string       `json:"studentId" validate:"omitempty,max=6"`
	Supervisor       *teacherRef  `json:"supervisor" validate:"required"`
	CoSupervisors    []teacherRef `json:"coSupervisors" validate:"omitempty,dive"`
	Company          *companyRef  `json:"company"`
	ThesisProposal   *proposalRef `json:"thesisProposal"`
	ThesisProposalID *uint        `json:"thesisProposalId" validate:"omitempty,gt=0"`
	IsEmbargo        *bool        `json:"isEmbargo"`
}

func (r createApplicationRequest) toNewApplication() service.NewApplication {
	in := service.NewApplication{
		StudentID:        r.StudentID,
		Topic:            r.Topic,
		SupervisorID:     r.Supervisor.ID,
		ThesisProposalID: r.ThesisProposalID,
		IsEmbargo:        r.IsEmbargo,
	}
	for _, co := range r.CoSupervisors {
		in.CoSupervisorIDs = append(in.CoSupervisorIDs, co.ID)
	}
	if r.Company != nil {
		in.Company = &service.CompanyInput{Name: r.Company.Name, Address: r.Company.Address}
	}
	if r.ThesisProposal != nil {
		id := r.ThesisProposal.ID
		in.ThesisProposalID = &id
	}
	return in
}

type statusRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note"`
}

type noteRequest struct {
	Note *string `json:"note"`
}

// Create handles POST /api/thesis-applications
func (h *ThesisApplicationHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}

	var req createApplicationRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse thesis application request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	app, err := h.applications.Create(c.Request().Context(), caller, req.toNewApplication())
	if err != nil {
		return respondError(c, err)
	}

	log.Info("Thesis application created",
		zap.Uint("id", app.ID),
		zap.String("student_id", app.StudentID))

	return c.JSON(http.StatusCreated, schema.FromApplication(*app))
}

// List handles GET /api/thesis-applications
func (h *ThesisApplicationHandler) List(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}

	filter := service.ListFilter{
		Status:    c.QueryParam("status"),
		StudentID: c.QueryParam("studentId"),
	}
	if raw := c.QueryParam("thesisProposalId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return respondError(c, apperr.Validation("invalid thesisProposalId", map[string]string{"thesisProposalId": "must be a positive integer"}))
		}
		proposalID := uint(id)
		filter.ThesisProposalID = &proposalID
	}
	// Students only ever see their own applications
	if caller.IsStudent() {
		filter.StudentID = caller.ID
	}

	page, err := h.applications.List(c.Request().Context(), filter, service.Pagination{
		Page:    queryInt(c, "page"),
		Limit:   queryInt(c, "limit"),
		SortBy:  c.QueryParam("sortBy"),
		OrderBy: c.QueryParam("orderBy"),
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, schema.ApplicationPage{
		Page:         page.Page,
		Limit:        page.Limit,
		TotalItems:   page.TotalItems,
		TotalPages:   page.TotalPages,
		Applications: schema.FromApplications(page.Applications),
	})
}

// Get handles GET /api/thesis-applications/:id
func (h *ThesisApplicationHandler) Get(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}

	app, err := h.applications.Get(c.Request().Context(), caller, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, schema.FromApplication(*app))
}

// Last handles GET /api/thesis-applications/last
func (h *ThesisApplicationHandler) Last(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	studentID, err := targetStudent(c, caller)
	if err != nil {
		return respondError(c, err)
	}

	app, err := h.applications.Last(c.Request().Context(), studentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, schema.FromApplication(*app))
}

// Eligibility handles GET /api/thesis-applications/eligibility
func (h *ThesisApplicationHandler) Eligibility(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	studentID, err := targetStudent(c, caller)
	if err != nil {
		return respondError(c, err)
	}

	eligible, err := h.applications.IsEligible(c.Request().Context(), studentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"studentId": studentID, "eligible": eligible})
}

// History handles GET /api/thesis-applications/:id/status-history
func (h *ThesisApplicationHandler) History(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}

	entries, err := h.applications.History(c.Request().Context(), caller, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, schema.FromHistory(entries))
}

// UpdateStatus handles PATCH /api/thesis-applications/:id/status
func (h *ThesisApplicationHandler) UpdateStatus(c echo.Context) error {
	log := logger.FromEcho(c)
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse status request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	app, err := h.applications.Transition(c.Request().Context(), caller, id, req.Status, req.Note)
	if err != nil {
		return respondError(c, err)
	}

	log.Info("Thesis application status changed",
		zap.Uint("id", app.ID),
		zap.String("status", app.Status.String()))

	return c.JSON(http.StatusOK, schema.FromApplication(*app))
}

// Cancel handles POST /api/thesis-applications/:id/cancel
func (h *ThesisApplicationHandler) Cancel(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	app, err := h.applications.Cancel(c.Request().Context(), caller, id, req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, schema.FromApplication(*app))
}

// DeleteLast handles DELETE /api/thesis-applications
func (h *ThesisApplicationHandler) DeleteLast(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return respondError(c, err)
	}
	if !caller.IsStudent() {
		return respondError(c, apperr.Forbidden("only students can delete their applications"))
	}

	if err := h.applications.DeleteLast(c.Request().Context(), caller); err != nil {
		return respondError(c, err)
	}

	logger.FromEcho(c).Info("Last thesis application deleted", zap.String("student_id", caller.ID))
	return c.NoContent(http.StatusNoContent)
}

func callerOf(c echo.Context) (model.Caller, error) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return model.Caller{}, apperr.Unauthorized("authentication required")
	}
	return caller, nil
}

// targetStudent resolves the studentId query parameter. Students may only
// name themselves; other roles must name a student.
func targetStudent(c echo.Context, caller model.Caller) (string, error) {
	requested := strings.TrimSpace(c.QueryParam("studentId"))
	if caller.IsStudent() {
		if requested != "" && requested != caller.ID {
			return "", apperr.Forbidden("students can only query themselves")
		}
		return caller.ID, nil
	}
	if requested == "" {
		return "", apperr.Validation("studentId is required", map[string]string{"studentId": "required"})
	}
	return requested, nil
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid thesis application id", map[string]string{"id": "must be a positive integer"})
	}
	return uint(id), nil
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
