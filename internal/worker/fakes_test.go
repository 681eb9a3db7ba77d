package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/repository"
	"github.com/retrocast/api/internal/service"
)

var errBoom = errors.New("boom")

type fakeTracker struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	history []model.ProcessingStage
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{jobs: map[string]*model.Job{}}
}

func (f *fakeTracker) job(jobID, userID string) *model.Job {
	j, ok := f.jobs[jobID]
	if !ok {
		j = &model.Job{ID: jobID, UserID: userID, Stage: model.StageQueued, StartedAt: time.Now()}
		f.jobs[jobID] = j
	}
	return j
}

func (f *fakeTracker) CreateStatus(_ context.Context, jobID, userID, info string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.job(jobID, userID)
	j.Info = info
	cp := *j
	return &cp, nil
}

func (f *fakeTracker) UpdateStatus(_ context.Context, jobID, userID string, stage model.ProcessingStage, info string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.job(jobID, userID)
	if j.Stage.IsTerminal() {
		return nil
	}
	j.Stage, j.Info, j.ProgressPercent = stage, info, progress
	f.history = append(f.history, stage)
	return nil
}

func (f *fakeTracker) MarkFailed(_ context.Context, jobID, userID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.job(jobID, userID)
	if j.Stage == model.StageCompleted {
		return nil
	}
	j.Stage, j.Info, j.ErrorMessage = model.StageFailed, service.InfoFailed, &errMsg
	f.history = append(f.history, model.StageFailed)
	return nil
}

func (f *fakeTracker) MarkCompleted(_ context.Context, jobID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.job(jobID, userID)
	j.Stage, j.Info, j.ProgressPercent = model.StageCompleted, service.InfoCompleted, 100
	f.history = append(f.history, model.StageCompleted)
	return nil
}

func (f *fakeTracker) GetStatus(_ context.Context, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeTracker) GetLatestStatus(context.Context, string) (*model.Job, error) {
	return nil, service.ErrJobNotFound
}

func (f *fakeTracker) AcquireActive(_ context.Context, _, jobID string) (string, bool, error) {
	return jobID, true, nil
}

func (f *fakeTracker) ReplaceActive(context.Context, string, string, string) (bool, error) {
	return true, nil
}

type fakeCatalog struct {
	candidates []model.AdCandidate
	saved      *model.AnalysisResult
}

func (c *fakeCatalog) GetVideo(_ context.Context, userID, videoID string) (*model.SourceVideo, error) {
	if videoID == "missing" {
		return nil, repository.ErrNotFound
	}
	return &model.SourceVideo{ID: videoID, UserID: userID, StoragePath: "videos/" + videoID + ".mp4"}, nil
}

func (c *fakeCatalog) GetAds(_ context.Context, userID string, adIDs []string) ([]model.AdAsset, error) {
	out := make([]model.AdAsset, 0, len(adIDs))
	for _, id := range adIDs {
		out = append(out, model.AdAsset{ID: id, UserID: userID, StoragePath: "ads/" + id + ".mp4"})
	}
	return out, nil
}

func (c *fakeCatalog) GetAdCandidates(context.Context, string, []string) ([]model.AdCandidate, error) {
	return c.candidates, nil
}

func (c *fakeCatalog) GetAnalysis(context.Context, string, string) (*model.AnalysisResult, float64, error) {
	return nil, 0, repository.ErrNotFound
}

func (c *fakeCatalog) SaveAnalysis(_ context.Context, _, _ string, result *model.AnalysisResult, _ float64) error {
	c.saved = result
	return nil
}

// fakeBlobs writes a small file for every download.
type fakeBlobs struct {
	failKey   string
	failUp    bool
	downloads []string
	uploads   []string
	deleted   []string
}

func (b *fakeBlobs) Download(_ context.Context, key, localPath string) error {
	b.downloads = append(b.downloads, key)
	if key == b.failKey {
		return errBoom
	}
	return os.WriteFile(localPath, []byte(key), 0o644)
}

func (b *fakeBlobs) Upload(_ context.Context, localPath, key string) (string, error) {
	if b.failUp {
		return "", errBoom
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	b.uploads = append(b.uploads, key)
	return "https://cdn.test/" + key, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBlobs) GetSignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.test/" + key + "?signed", nil
}

func (b *fakeBlobs) GetPublicURL(key string) string { return "https://cdn.test/" + key }

type fakeAnalyzer struct {
	result *model.AnalysisResult
	err    error
}

func (a *fakeAnalyzer) Analyze(context.Context, string, model.StyleProfile) (*model.AnalysisResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

// fakeTranscoder writes an output file into outDir for every step so
// workspace cleanup is observable.
type fakeTranscoder struct {
	failStep  string
	panicStep string
	duration  float64

	insertedAds []string
	insertedAt  []float64
	steps       []string
}

func (t *fakeTranscoder) step(name, outDir string) (string, error) {
	t.steps = append(t.steps, name)
	if name == t.panicStep {
		panic("transcoder blew up in " + name)
	}
	if name == t.failStep {
		return "", fmt.Errorf("ffmpeg %s failed: %w", name, errBoom)
	}
	out := filepath.Join(outDir, name+".mp4")
	return out, os.WriteFile(out, []byte(name), 0o644)
}

func (t *fakeTranscoder) ApplyStyle(_ context.Context, _ string, style model.StyleProfile, outDir string) (string, error) {
	return t.step("style-"+strings.ToLower(string(style)), outDir)
}

func (t *fakeTranscoder) InsertAds(_ context.Context, _ string, ads []string, insertAt []float64, outDir string) (string, error) {
	t.insertedAds = append([]string(nil), ads...)
	t.insertedAt = append([]float64(nil), insertAt...)
	return t.step("ads", outDir)
}

func (t *fakeTranscoder) AddAudioEffects(_ context.Context, _, outDir string) (string, error) {
	return t.step("audio", outDir)
}

func (t *fakeTranscoder) Duration(context.Context, string) (float64, error) {
	return t.duration, nil
}

type fakeResults struct {
	err   error
	saved []*model.ProcessedVideo
}

func (r *fakeResults) Save(_ context.Context, v *model.ProcessedVideo) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, v)
	return nil
}

func (r *fakeResults) ListByUser(context.Context, string, int) ([]model.ProcessedVideo, error) {
	return nil, nil
}

type recordedEvent struct {
	kind     string
	progress int
	stage    model.ProcessingStage
	code     string
}

type fakeEvents struct {
	events []recordedEvent
}

func (e *fakeEvents) BroadcastProgress(_ string, progress int, stage model.ProcessingStage, _ string) {
	e.events = append(e.events, recordedEvent{kind: "progress", progress: progress, stage: stage})
}

func (e *fakeEvents) BroadcastComplete(string, interface{}) {
	e.events = append(e.events, recordedEvent{kind: "complete"})
}

func (e *fakeEvents) BroadcastError(_ string, code, _ string) {
	e.events = append(e.events, recordedEvent{kind: "error", code: code})
}
