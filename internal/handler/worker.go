package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/worker"
)

// VideoRunner runs the processing pipeline for one payload.
type VideoRunner interface {
	Run(ctx context.Context, payload *model.VideoTaskPayload) (*model.ProcessedVideo, error)
}

// WorkerHandler receives push deliveries. Identity is checked by
// middleware.WorkerAuth before the handler runs.
type WorkerHandler struct {
	runner VideoRunner
}

func NewWorkerHandler(runner VideoRunner) *WorkerHandler {
	return &WorkerHandler{runner: runner}
}

// ProcessVideo handles POST /internal/worker/process-video
func (h *WorkerHandler) ProcessVideo(c *fiber.Ctx) error {
	var payload model.VideoTaskPayload
	if err := c.BodyParser(&payload); err != nil || payload.JobID == "" || payload.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.WorkerResponse{
			Status: "error",
			JobID:  payload.JobID,
			Error:  "Invalid payload",
		})
	}

	result, err := h.runner.Run(c.UserContext(), &payload)
	switch {
	case errors.Is(err, worker.ErrAlreadyFinished):
		log.Info().Str("jobId", payload.JobID).Msg("Push redelivery ignored")
		return c.JSON(model.WorkerResponse{Status: "skipped", JobID: payload.JobID})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(model.WorkerResponse{
			Status: "error",
			JobID:  payload.JobID,
			Error:  err.Error(),
		})
	}

	return c.JSON(model.WorkerResponse{
		Status:           "success",
		JobID:            payload.JobID,
		ProcessedVideoID: result.ID,
		FileURL:          result.FileURL,
	})
}
