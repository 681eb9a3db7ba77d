package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/retrocast/api/internal/middleware"
	"github.com/retrocast/api/internal/service"
	"github.com/retrocast/api/pkg/response"
)

type LibraryHandler struct {
	service *service.LibraryService
}

func NewLibraryHandler(svc *service.LibraryService) *LibraryHandler {
	return &LibraryHandler{service: svc}
}

// Processed handles GET /api/library/processed
// @Summary      Processed videos
// @Description  The caller's finished videos, newest first
// @Tags         Library
// @Produce      json
// @Param        limit query int false "Maximum number of videos"
// @Success      200 {object} model.ProcessedListResponse
// @Security     BearerAuth
// @Router       /api/library/processed [get]
func (h *LibraryHandler) Processed(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return response.ValidationError(c, "limit must not be negative", nil)
	}

	result, err := h.service.ListProcessed(c.UserContext(), middleware.GetUserID(c), limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, result)
}
