package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/retrocast/api/internal/middleware"
	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/service"
	"github.com/retrocast/api/pkg/response"
)

type ProcessHandler struct {
	service   *service.DispatchService
	validator *validator.Validate
}

func NewProcessHandler(svc *service.DispatchService, v *validator.Validate) *ProcessHandler {
	return &ProcessHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/process/start
// @Summary      Start video processing
// @Description  Queue a video for retro styling and ad insertion. One job per user at a time.
// @Tags         Process
// @Accept       json
// @Produce      json
// @Param        request body model.ProcessStartRequest true "Process start request"
// @Success      202 {object} model.ProcessStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      409 {object} model.ConflictResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/process/start [post]
func (h *ProcessHandler) Start(c *fiber.Ctx) error {
	var req model.ProcessStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Accepted(c, result)
}

// Latest handles GET /api/process/latest
// @Summary      Latest job
// @Description  Most recently started job of the caller
// @Tags         Process
// @Produce      json
// @Success      200 {object} model.Job
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/process/latest [get]
func (h *ProcessHandler) Latest(c *fiber.Ctx) error {
	job, err := h.service.GetLatestStatus(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, job)
}

// Status handles GET /api/process/status/:jobId
// @Summary      Job status
// @Tags         Process
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.Job
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/process/status/{jobId} [get]
func (h *ProcessHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetStatusForUser(c.UserContext(), jobID, middleware.GetUserID(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, job)
}
