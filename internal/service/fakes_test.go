package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/repository"
)

// memTracker mirrors StatusService semantics in memory.
type memTracker struct {
	mu     sync.Mutex
	jobs   map[string]*model.Job
	order  []string
	active map[string]string

	createErr error
	failErr   error
}

func newMemTracker() *memTracker {
	return &memTracker{jobs: map[string]*model.Job{}, active: map[string]string{}}
}

func (m *memTracker) CreateStatus(_ context.Context, jobID, userID, info string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	now := time.Now()
	job := &model.Job{ID: jobID, UserID: userID, Stage: model.StageQueued, Info: info, StartedAt: now, UpdatedAt: now}
	m.jobs[jobID] = job
	m.order = append(m.order, jobID)
	cp := *job
	return &cp, nil
}

func (m *memTracker) get(jobID, userID string) *model.Job {
	job, ok := m.jobs[jobID]
	if !ok {
		job = &model.Job{ID: jobID, UserID: userID, StartedAt: time.Now()}
		m.jobs[jobID] = job
		m.order = append(m.order, jobID)
	}
	return job
}

func (m *memTracker) UpdateStatus(_ context.Context, jobID, userID string, stage model.ProcessingStage, info string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.get(jobID, userID)
	if job.Stage.IsTerminal() {
		return nil
	}
	job.Stage, job.Info, job.ProgressPercent, job.UpdatedAt = stage, info, progress, time.Now()
	return nil
}

func (m *memTracker) MarkFailed(_ context.Context, jobID, userID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	job := m.get(jobID, userID)
	now := time.Now()
	job.Stage, job.Info, job.ErrorMessage, job.CompletedAt = model.StageFailed, InfoFailed, &errMsg, &now
	if m.active[job.UserID] == jobID {
		delete(m.active, job.UserID)
	}
	return nil
}

func (m *memTracker) MarkCompleted(_ context.Context, jobID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.get(jobID, userID)
	now := time.Now()
	job.Stage, job.Info, job.ProgressPercent, job.CompletedAt = model.StageCompleted, InfoCompleted, 100, &now
	if m.active[job.UserID] == jobID {
		delete(m.active, job.UserID)
	}
	return nil
}

func (m *memTracker) GetStatus(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *memTracker) GetLatestStatus(ctx context.Context, userID string) (*model.Job, error) {
	m.mu.Lock()
	var latest string
	for _, id := range m.order {
		if m.jobs[id].UserID == userID {
			latest = id
		}
	}
	m.mu.Unlock()
	if latest == "" {
		return nil, ErrJobNotFound
	}
	return m.GetStatus(ctx, latest)
}

func (m *memTracker) AcquireActive(_ context.Context, userID, jobID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, ok := m.active[userID]; ok {
		return holder, false, nil
	}
	m.active[userID] = jobID
	return jobID, true, nil
}

func (m *memTracker) ReplaceActive(_ context.Context, userID, staleJobID, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[userID] != staleJobID {
		return false, nil
	}
	m.active[userID] = jobID
	return true, nil
}

type fakeCatalog struct {
	videos     map[string]string // videoID -> owner
	ads        map[string]string // adID -> owner
	candidates map[string]model.AdCandidate
	analyses   map[string]*model.AnalysisResult
	saved      map[string]*model.AnalysisResult
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		videos:     map[string]string{},
		ads:        map[string]string{},
		candidates: map[string]model.AdCandidate{},
		analyses:   map[string]*model.AnalysisResult{},
		saved:      map[string]*model.AnalysisResult{},
	}
}

func (c *fakeCatalog) GetVideo(_ context.Context, userID, videoID string) (*model.SourceVideo, error) {
	if c.videos[videoID] != userID {
		return nil, repository.ErrNotFound
	}
	return &model.SourceVideo{ID: videoID, UserID: userID, StoragePath: "videos/" + videoID + ".mp4"}, nil
}

func (c *fakeCatalog) GetAds(_ context.Context, userID string, adIDs []string) ([]model.AdAsset, error) {
	var out []model.AdAsset
	for _, id := range adIDs {
		if c.ads[id] == userID {
			out = append(out, model.AdAsset{ID: id, UserID: userID, StoragePath: "ads/" + id + ".mp4"})
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetAdCandidates(_ context.Context, userID string, adIDs []string) ([]model.AdCandidate, error) {
	var out []model.AdCandidate
	for _, id := range adIDs {
		if cand, ok := c.candidates[id]; ok && c.ads[id] == userID {
			out = append(out, cand)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetAnalysis(_ context.Context, userID, videoID string) (*model.AnalysisResult, float64, error) {
	a, ok := c.analyses[videoID]
	if !ok || c.videos[videoID] != userID {
		return nil, 0, repository.ErrNotFound
	}
	return a, 600, nil
}

func (c *fakeCatalog) SaveAnalysis(_ context.Context, _, videoID string, result *model.AnalysisResult, _ float64) error {
	c.saved[videoID] = result
	return nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	return &asynq.TaskInfo{}, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(jobID, _, _ string) (string, error) { return "signed-" + jobID, nil }

var errBoom = errors.New("boom")
