package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/apperror"
	"github.com/retrocast/api/internal/config"
	"github.com/retrocast/api/internal/model"
)

const (
	InfoFailed    = "Processing failed"
	InfoCompleted = "Video processing complete!"
)

var (
	ErrJobNotFound = apperror.NotFound("Job not found")
	ErrNotOwned    = apperror.Forbidden("You do not have access to this job")
)

// StatusTracker owns job lifecycle records and the per-user active-job marker.
type StatusTracker interface {
	CreateStatus(ctx context.Context, jobID, userID, info string) (*model.Job, error)
	UpdateStatus(ctx context.Context, jobID, userID string, stage model.ProcessingStage, info string, progress int) error
	MarkFailed(ctx context.Context, jobID, userID, errMsg string) error
	MarkCompleted(ctx context.Context, jobID, userID string) error
	GetStatus(ctx context.Context, jobID string) (*model.Job, error)
	GetLatestStatus(ctx context.Context, userID string) (*model.Job, error)
	AcquireActive(ctx context.Context, userID, jobID string) (holder string, acquired bool, err error)
	ReplaceActive(ctx context.Context, userID, staleJobID, jobID string) (bool, error)
}

// Compare-and-delete: only the job holding the marker may clear it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Compare-and-set with expiry.
var replaceScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// StatusService stores jobs in Redis:
//
//	job:<id>          JSON record, expires after StatusTTL
//	user:<uid>:jobs   sorted set of job ids by start time
//	active:<uid>      id of the user's in-flight job, expires after ActiveJobTTL
type StatusService struct {
	redis     *redis.Client
	statusTTL time.Duration
	activeTTL time.Duration
	now       func() time.Time
}

var _ StatusTracker = (*StatusService)(nil)

func NewStatusService(redisClient *redis.Client, cfg *config.DispatchConfig) *StatusService {
	return &StatusService{
		redis:     redisClient,
		statusTTL: cfg.StatusTTL,
		activeTTL: cfg.ActiveJobTTL,
		now:       time.Now,
	}
}

func jobKey(jobID string) string { return "job:" + jobID }
func userJobsKey(userID string) string { return "user:" + userID + ":jobs" }
func activeKey(userID string) string { return "active:" + userID }

func (s *StatusService) CreateStatus(ctx context.Context, jobID, userID, info string) (*model.Job, error) {
	now := s.now()
	job := &model.Job{
		ID:              jobID,
		UserID:          userID,
		Stage:           model.StageQueued,
		Info:            info,
		ProgressPercent: 0,
		StartedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.saveJob(ctx, job, true); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateStatus creates the record if it is missing. Terminal records are
// left untouched.
func (s *StatusService) UpdateStatus(ctx context.Context, jobID, userID string, stage model.ProcessingStage, info string, progress int) error {
	job, created, err := s.getOrNew(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if job.Stage.IsTerminal() {
		log.Warn().Str("jobId", jobID).Str("stage", string(job.Stage)).Msg("Ignoring update to finished job")
		return nil
	}

	job.Stage = stage
	job.Info = info
	job.ProgressPercent = progress
	job.UpdatedAt = s.now()
	return s.saveJob(ctx, job, created)
}

// MarkFailed freezes progress where it was and releases the user's marker.
func (s *StatusService) MarkFailed(ctx context.Context, jobID, userID, errMsg string) error {
	job, created, err := s.getOrNew(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if job.Stage == model.StageCompleted {
		return nil
	}

	now := s.now()
	job.Stage = model.StageFailed
	job.Info = InfoFailed
	job.ErrorMessage = &errMsg
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := s.saveJob(ctx, job, created); err != nil {
		return err
	}
	return s.releaseActive(ctx, job.UserID, jobID)
}

func (s *StatusService) MarkCompleted(ctx context.Context, jobID, userID string) error {
	job, created, err := s.getOrNew(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if job.Stage == model.StageFailed {
		return nil
	}

	now := s.now()
	job.Stage = model.StageCompleted
	job.Info = InfoCompleted
	job.ProgressPercent = 100
	job.ErrorMessage = nil
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := s.saveJob(ctx, job, created); err != nil {
		return err
	}
	return s.releaseActive(ctx, job.UserID, jobID)
}

func (s *StatusService) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// GetLatestStatus returns the user's most recently started job that has not expired.
func (s *StatusService) GetLatestStatus(ctx context.Context, userID string) (*model.Job, error) {
	key := userJobsKey(userID)
	ids, err := s.redis.ZRevRange(ctx, key, 0, 9).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs for %s: %w", userID, err)
	}
	for _, id := range ids {
		job, err := s.GetStatus(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			s.redis.ZRem(ctx, key, id)
			continue
		}
		return job, err
	}
	return nil, ErrJobNotFound
}

// AcquireActive claims the user's in-flight slot for jobID. When the slot is
// taken it reports the holder.
func (s *StatusService) AcquireActive(ctx context.Context, userID, jobID string) (string, bool, error) {
	key := activeKey(userID)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.redis.SetNX(ctx, key, jobID, s.activeTTL).Result()
		if err != nil {
			return "", false, fmt.Errorf("acquire active job for %s: %w", userID, err)
		}
		if ok {
			return jobID, true, nil
		}

		holder, err := s.redis.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("read active job for %s: %w", userID, err)
		}
		return holder, false, nil
	}
	return "", false, fmt.Errorf("active job marker for %s kept changing", userID)
}

// ReplaceActive swaps the marker from staleJobID to jobID if it still names staleJobID.
func (s *StatusService) ReplaceActive(ctx context.Context, userID, staleJobID, jobID string) (bool, error) {
	n, err := replaceScript.Run(ctx, s.redis, []string{activeKey(userID)},
		staleJobID, jobID, s.activeTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("replace active job for %s: %w", userID, err)
	}
	return n == 1, nil
}

func (s *StatusService) releaseActive(ctx context.Context, userID, jobID string) error {
	if err := releaseScript.Run(ctx, s.redis, []string{activeKey(userID)}, jobID).Err(); err != nil {
		return fmt.Errorf("release active job for %s: %w", userID, err)
	}
	return nil
}

func (s *StatusService) getOrNew(ctx context.Context, jobID, userID string) (*model.Job, bool, error) {
	job, err := s.GetStatus(ctx, jobID)
	if err == nil {
		return job, false, nil
	}
	if !errors.Is(err, ErrJobNotFound) {
		return nil, false, err
	}

	log.Warn().Str("jobId", jobID).Str("userId", userID).Msg("Status record missing, recreating")
	now := s.now()
	return &model.Job{ID: jobID, UserID: userID, StartedAt: now, UpdatedAt: now}, true, nil
}

func (s *StatusService) saveJob(ctx context.Context, job *model.Job, index bool) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), data, s.statusTTL)
	if index {
		key := userJobsKey(job.UserID)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(job.StartedAt.UnixMilli()), Member: job.ID})
		pipe.Expire(ctx, key, s.statusTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}
