package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/retrocast/api/internal/middleware"
	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/service"
	"github.com/retrocast/api/pkg/response"
)

type MatchHandler struct {
	service   *service.MatchService
	validator *validator.Validate
}

func NewMatchHandler(svc *service.MatchService, v *validator.Validate) *MatchHandler {
	return &MatchHandler{
		service:   svc,
		validator: v,
	}
}

// Match handles POST /api/match
// @Summary      Rank ads for a video
// @Description  Scores the given ads against the stored analysis of a video and schedules the best ones
// @Tags         Match
// @Accept       json
// @Produce      json
// @Param        request body model.MatchRequest true "Match request"
// @Success      200 {object} model.MatchResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/match [post]
func (h *MatchHandler) Match(c *fiber.Ctx) error {
	var req model.MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Match(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, result)
}
