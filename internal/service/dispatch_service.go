package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/apperror"
	"github.com/retrocast/api/internal/config"
	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/repository"
)

const TaskTypeVideoProcess = "video:process"

const (
	conflictMessage = "You already have a video being processed. Please wait."
	queuedInfo      = "Job queued for processing"
	startedMessage  = "Video processing started"
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AssertionSigner signs the worker assertion embedded in each task.
type AssertionSigner interface {
	Sign(jobID, userID, videoID string) (string, error)
}

// DispatchService accepts processing requests and queues them, allowing at
// most one in-flight job per user.
type DispatchService struct {
	tracker  StatusTracker
	catalog  Catalog
	queue    TaskEnqueuer
	signer   AssertionSigner
	cfg      config.DispatchConfig
	newJobID func() string
}

func NewDispatchService(tracker StatusTracker, catalog Catalog, queue TaskEnqueuer, signer AssertionSigner, cfg *config.DispatchConfig) *DispatchService {
	return &DispatchService{
		tracker:  tracker,
		catalog:  catalog,
		queue:    queue,
		signer:   signer,
		cfg:      *cfg,
		newJobID: func() string { return uuid.New().String() },
	}
}

// Submit validates ownership, claims the user's slot, records the job and
// enqueues it. Validation and conflict errors leave no trace.
func (s *DispatchService) Submit(ctx context.Context, userID string, req *model.ProcessStartRequest) (*model.ProcessStartResponse, error) {
	style, ok := model.ParseStyleProfile(req.ShaderStyle)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("Unknown shader style: %s", req.ShaderStyle))
	}
	if err := s.checkOwnership(ctx, userID, req.VideoID, req.AdIDs); err != nil {
		return nil, err
	}

	jobID := s.newJobID()
	if err := s.claimSlot(ctx, userID, jobID); err != nil {
		return nil, err
	}

	if _, err := s.tracker.CreateStatus(ctx, jobID, userID, queuedInfo); err != nil {
		// nothing was queued, so hand the slot back
		if markErr := s.tracker.MarkFailed(ctx, jobID, userID, "Failed to record job"); markErr != nil {
			log.Error().Err(markErr).Str("jobId", jobID).Msg("Failed to release slot of unrecorded job")
		}
		return nil, apperror.Internal("Failed to create job", err)
	}

	payload := model.VideoTaskPayload{
		JobID:       jobID,
		UserID:      userID,
		VideoID:     req.VideoID,
		AdIDs:       req.AdIDs,
		ShaderStyle: style,
	}
	if err := s.enqueue(ctx, &payload); err != nil {
		if markErr := s.tracker.MarkFailed(ctx, jobID, userID, err.Error()); markErr != nil {
			log.Error().Err(markErr).Str("jobId", jobID).Msg("Failed to mark unqueued job as failed")
		}
		return nil, apperror.External("Failed to queue video processing", err)
	}

	log.Info().
		Str("jobId", jobID).
		Str("userId", userID).
		Str("style", string(style)).
		Int("ads", len(req.AdIDs)).
		Msg("Video processing job queued")

	return &model.ProcessStartResponse{
		JobID:   jobID,
		Message: startedMessage,
		Status:  model.StageQueued,
	}, nil
}

func (s *DispatchService) checkOwnership(ctx context.Context, userID, videoID string, adIDs []string) error {
	if _, err := s.catalog.GetVideo(ctx, userID, videoID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Validation("Video not found or access denied: " + videoID)
		}
		return apperror.Internal("Failed to look up video", err)
	}
	if len(adIDs) == 0 {
		return nil
	}

	ads, err := s.catalog.GetAds(ctx, userID, adIDs)
	if err != nil {
		return apperror.Internal("Failed to look up ads", err)
	}
	owned := make(map[string]bool, len(ads))
	for _, a := range ads {
		owned[a.ID] = true
	}
	for _, id := range adIDs {
		if !owned[id] {
			return apperror.Validation("Ad not found or access denied: " + id)
		}
	}
	return nil
}

// claimSlot takes the user's active marker. A marker left behind by a job that
// already finished or expired is taken over.
func (s *DispatchService) claimSlot(ctx context.Context, userID, jobID string) error {
	holder, acquired, err := s.tracker.AcquireActive(ctx, userID, jobID)
	if err != nil {
		return apperror.Internal("Failed to check active jobs", err)
	}
	if acquired {
		return nil
	}

	held, err := s.tracker.GetStatus(ctx, holder)
	switch {
	case err == nil && held.InFlight():
		return apperror.Conflict(conflictMessage)
	case err != nil && !errors.Is(err, ErrJobNotFound):
		return apperror.Internal("Failed to check active jobs", err)
	}

	replaced, err := s.tracker.ReplaceActive(ctx, userID, holder, jobID)
	if err != nil {
		return apperror.Internal("Failed to check active jobs", err)
	}
	if !replaced {
		return apperror.Conflict(conflictMessage)
	}
	log.Info().Str("userId", userID).Str("staleJobId", holder).Msg("Replaced stale active job marker")
	return nil
}

func (s *DispatchService) enqueue(ctx context.Context, payload *model.VideoTaskPayload) error {
	assertion, err := s.signer.Sign(payload.JobID, payload.UserID, payload.VideoID)
	if err != nil {
		return fmt.Errorf("sign worker assertion: %w", err)
	}
	payload.Assertion = assertion

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeVideoProcess, data)
	_, err = s.queue.EnqueueContext(ctx, task,
		asynq.Queue(s.cfg.Queue),
		asynq.MaxRetry(0),
		asynq.Timeout(s.cfg.TaskTimeout),
		asynq.Retention(s.cfg.TaskRetention),
		asynq.TaskID(payload.JobID),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// GetStatusForUser returns a job only to its owner.
func (s *DispatchService) GetStatusForUser(ctx context.Context, jobID, userID string) (*model.Job, error) {
	job, err := s.tracker.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrNotOwned
	}
	return job, nil
}

func (s *DispatchService) GetLatestStatus(ctx context.Context, userID string) (*model.Job, error) {
	return s.tracker.GetLatestStatus(ctx, userID)
}
