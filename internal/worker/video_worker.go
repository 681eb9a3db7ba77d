package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/apperror"
	"github.com/retrocast/api/internal/client"
	"github.com/retrocast/api/internal/matching"
	"github.com/retrocast/api/internal/media"
	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/repository"
	"github.com/retrocast/api/internal/service"
)

// ErrAlreadyFinished is returned by Run for a redelivered job that already
// reached COMPLETED or FAILED.
var ErrAlreadyFinished = errors.New("job already finished")

// Transcoder performs the media transforms of the pipeline.
type Transcoder interface {
	ApplyStyle(ctx context.Context, input string, style model.StyleProfile, outDir string) (string, error)
	InsertAds(ctx context.Context, main string, ads []string, insertAt []float64, outDir string) (string, error)
	AddAudioEffects(ctx context.Context, input, outDir string) (string, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// Broadcaster pushes job updates to live subscribers.
type Broadcaster interface {
	BroadcastProgress(jobID string, progress int, stage model.ProcessingStage, info string)
	BroadcastComplete(jobID string, result interface{})
	BroadcastError(jobID, code, message string)
}

// AssertionVerifier checks the identity assertion carried by queued tasks.
type AssertionVerifier interface {
	Verify(token, jobID, userID, videoID string) error
}

type Dependencies struct {
	Tracker    service.StatusTracker
	Catalog    service.Catalog
	Blobs      client.BlobStore
	Analyzer   client.ContentAnalyzer
	Transcoder Transcoder
	Results    repository.ProcessedStore
	Assertions AssertionVerifier
	Events     Broadcaster
}

type Options struct {
	TempDir         string
	ProcessedPrefix string
}

// VideoWorker runs the processing pipeline for one job at a time per call.
type VideoWorker struct {
	tracker    service.StatusTracker
	catalog    service.Catalog
	blobs      client.BlobStore
	analyzer   client.ContentAnalyzer
	media      Transcoder
	results    repository.ProcessedStore
	assertions AssertionVerifier
	events     Broadcaster

	tempDir         string
	processedPrefix string
	downloadRetry   *apperror.RetryConfig
	now             func() time.Time
}

func NewVideoWorker(deps Dependencies, opts Options) *VideoWorker {
	prefix := strings.Trim(opts.ProcessedPrefix, "/")
	if prefix == "" {
		prefix = "processed"
	}
	return &VideoWorker{
		tracker:         deps.Tracker,
		catalog:         deps.Catalog,
		blobs:           deps.Blobs,
		analyzer:        deps.Analyzer,
		media:           deps.Transcoder,
		results:         deps.Results,
		assertions:      deps.Assertions,
		events:          deps.Events,
		tempDir:         opts.TempDir,
		processedPrefix: prefix,
		downloadRetry:   apperror.StorageReadRetryConfig(),
		now:             time.Now,
	}
}

// ProcessTask handles video:process tasks. Nothing is retried by the queue;
// a failed job stays FAILED until the user submits again.
func (w *VideoWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.VideoTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode video task: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.assertions.Verify(payload.Assertion, payload.JobID, payload.UserID, payload.VideoID); err != nil {
		log.Warn().Err(err).Str("jobId", payload.JobID).Msg("Rejecting video task with invalid assertion")
		return fmt.Errorf("reject video task %s: %v: %w", payload.JobID, err, asynq.SkipRetry)
	}

	_, err := w.Run(ctx, &payload)
	if errors.Is(err, ErrAlreadyFinished) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("process video task %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}
	return nil
}

// job carries the per-run state through the stages.
type job struct {
	payload *model.VideoTaskPayload
	style   model.StyleProfile
	ws      *media.Workspace
	logger  zerolog.Logger

	videoPath  string
	adIDs      []string
	adPaths    []string
	adPathByID map[string]string
	analysis   *model.AnalysisResult
	duration   float64
	schedule   []model.ScheduleItem
	current    string
}

// Run executes every stage for payload. The scratch workspace is removed on
// all return paths. On failure, panics included, the job is marked FAILED and
// the error returned.
func (w *VideoWorker) Run(ctx context.Context, payload *model.VideoTaskPayload) (result *model.ProcessedVideo, err error) {
	if payload == nil || payload.JobID == "" || payload.UserID == "" {
		return nil, apperror.Validation("jobId and userId are required")
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("jobId", payload.JobID).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Video processing panicked")
			result = nil
			err = w.fail(ctx, payload, apperror.Internal("Unexpected processing error", fmt.Errorf("panic: %v", r)))
		}
	}()
	return w.run(ctx, payload)
}

func (w *VideoWorker) run(ctx context.Context, payload *model.VideoTaskPayload) (*model.ProcessedVideo, error) {
	started := w.now()
	logger := log.With().Str("jobId", payload.JobID).Str("userId", payload.UserID).Logger()

	if existing, err := w.tracker.GetStatus(ctx, payload.JobID); err == nil && existing.Stage.IsTerminal() {
		logger.Info().Str("stage", string(existing.Stage)).Msg("Skipping redelivered job")
		return nil, ErrAlreadyFinished
	}

	style, ok := model.ParseStyleProfile(string(payload.ShaderStyle))
	if !ok {
		return nil, w.fail(ctx, payload, apperror.Validation("Unknown shader style: "+string(payload.ShaderStyle)))
	}
	logger = logger.With().Str("style", string(style)).Logger()
	logger.Info().Str("videoId", payload.VideoID).Int("ads", len(payload.AdIDs)).Msg("Processing video")

	ws, err := media.NewWorkspace(w.tempDir, payload.UserID)
	if err != nil {
		return nil, w.fail(ctx, payload, err)
	}
	defer ws.Close()

	j := &job{payload: payload, style: style, ws: ws, logger: logger, adPathByID: map[string]string{}}

	stages := []func(context.Context, *job) error{
		w.download,
		w.analyze,
		w.applyEffects,
		w.insertAds,
		w.addAudioEffects,
	}
	for _, stage := range stages {
		if err := stage(ctx, j); err != nil {
			return nil, w.fail(ctx, payload, err)
		}
	}

	result, err := w.upload(ctx, j, started)
	if err != nil {
		return nil, w.fail(ctx, payload, err)
	}

	if err := w.tracker.MarkCompleted(ctx, payload.JobID, payload.UserID); err != nil {
		return nil, w.fail(ctx, payload, fmt.Errorf("mark completed: %w", err))
	}
	w.broadcastProgress(payload.JobID, 100, model.StageCompleted, service.InfoCompleted)
	if w.events != nil {
		w.events.BroadcastComplete(payload.JobID, result)
	}

	logger.Info().Dur("duration", w.now().Sub(started)).Str("fileUrl", result.FileURL).Msg("Video processing completed")
	return result, nil
}

func (w *VideoWorker) download(ctx context.Context, j *job) error {
	p := j.payload
	if err := w.progress(ctx, j, model.StageDownloading, "Downloading video files from storage...", 5); err != nil {
		return err
	}

	video, err := w.catalog.GetVideo(ctx, p.UserID, p.VideoID)
	if err != nil {
		return fmt.Errorf("video not found: %s: %w", p.VideoID, err)
	}
	j.videoPath = j.ws.TempName("main", extOf(video.StoragePath))
	if err := w.fetch(ctx, video.StoragePath, j.videoPath); err != nil {
		return err
	}
	j.logger.Debug().Str("path", j.videoPath).Msg("Downloaded source video")

	if len(p.AdIDs) == 0 {
		return nil
	}
	ads, err := w.catalog.GetAds(ctx, p.UserID, p.AdIDs)
	if err != nil {
		return fmt.Errorf("load ads: %w", err)
	}
	for _, ad := range ads {
		dest := j.ws.TempName("ad-"+ad.ID, extOf(ad.StoragePath))
		if err := w.fetch(ctx, ad.StoragePath, dest); err != nil {
			return err
		}
		j.adIDs = append(j.adIDs, ad.ID)
		j.adPaths = append(j.adPaths, dest)
		j.adPathByID[ad.ID] = dest
	}
	j.logger.Debug().Int("ads", len(j.adPaths)).Msg("Downloaded ads")
	return nil
}

// fetch is the only retried call in the pipeline.
func (w *VideoWorker) fetch(ctx context.Context, key, dest string) error {
	err := apperror.Retry(ctx, w.downloadRetry, func(ctx context.Context) error {
		return w.blobs.Download(ctx, key, dest)
	})
	if err != nil {
		return apperror.External("Failed to download "+key, err)
	}
	return nil
}

func (w *VideoWorker) analyze(ctx context.Context, j *job) error {
	p := j.payload
	if err := w.progress(ctx, j, model.StageAnalyzing, "Uploading video for analysis...", 15); err != nil {
		return err
	}

	analysis, err := w.analyzer.Analyze(ctx, j.videoPath, j.style)
	if err != nil {
		return err
	}
	if analysis == nil {
		return apperror.External("Content analyzer returned no result", nil)
	}
	j.analysis = analysis

	if d, err := w.media.Duration(ctx, j.videoPath); err != nil {
		j.logger.Warn().Err(err).Msg("Could not probe source duration")
	} else {
		j.duration = d
	}

	info := fmt.Sprintf("Found %d scene breaks and %d ad insertion points",
		len(analysis.SceneBreaks), len(analysis.AdInsertionPoints))
	if err := w.progress(ctx, j, model.StageAnalyzing, info, 25); err != nil {
		return err
	}

	if err := w.catalog.SaveAnalysis(ctx, p.UserID, p.VideoID, analysis, j.duration); err != nil {
		j.logger.Warn().Err(err).Msg("Failed to store analysis")
	}
	return nil
}

func (w *VideoWorker) applyEffects(ctx context.Context, j *job) error {
	info := fmt.Sprintf("Applying %s shader effects...", j.style)
	if err := w.progress(ctx, j, model.StageApplyingEffects, info, 40); err != nil {
		return err
	}

	out, err := w.media.ApplyStyle(ctx, j.videoPath, j.style, j.ws.Dir())
	if err != nil {
		return err
	}
	j.current = out
	return nil
}

func (w *VideoWorker) insertAds(ctx context.Context, j *job) error {
	if len(j.adPaths) == 0 || len(j.analysis.AdInsertionPoints) == 0 {
		j.logger.Info().Msg("No ads or insertion points, skipping ad insertion")
		return nil
	}
	if err := w.progress(ctx, j, model.StageInsertingAds, "Inserting ads at optimal points...", 55); err != nil {
		return err
	}

	ads, at := w.placeAds(ctx, j)
	if len(at) == 0 {
		j.logger.Info().Msg("No usable insertion points")
		return nil
	}

	out, err := w.media.InsertAds(ctx, j.current, ads, at, j.ws.Dir())
	if err != nil {
		return err
	}
	j.current = out
	j.logger.Info().Int("inserted", len(at)).Msg("Inserted ads")
	return nil
}

// placeAds returns the ad files and offsets to splice. Every downloaded ad
// is ranked and scheduled; ads without stored metadata take part with
// neutral attributes.
func (w *VideoWorker) placeAds(ctx context.Context, j *job) ([]string, []float64) {
	p := j.payload
	profile := matching.ProfileFromAnalysis(p.VideoID, j.analysis, j.duration)

	stored, err := w.catalog.GetAdCandidates(ctx, p.UserID, j.adIDs)
	if err != nil {
		j.logger.Warn().Err(err).Msg("Ad metadata unavailable, ranking ads as neutral")
	}
	byID := make(map[string]model.AdCandidate, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}
	candidates := make([]model.AdCandidate, 0, len(j.adIDs))
	for _, id := range j.adIDs {
		c, ok := byID[id]
		if !ok {
			c = model.AdCandidate{ID: id}
		}
		candidates = append(candidates, c)
	}

	ranked := matching.Rank(candidates, profile)
	j.schedule = matching.BuildSchedule(ranked, profile.BreakPoints, len(j.adPaths))

	var ads []string
	var at []float64
	for _, item := range j.schedule {
		if adPath, ok := j.adPathByID[item.AdID]; ok {
			ads = append(ads, adPath)
			at = append(at, item.InsertAtSeconds)
		}
	}
	return ads, at
}

func (w *VideoWorker) addAudioEffects(ctx context.Context, j *job) error {
	if err := w.progress(ctx, j, model.StageAddingAudioEffects, "Adding vintage crackly audio effects...", 70); err != nil {
		return err
	}

	out, err := w.media.AddAudioEffects(ctx, j.current, j.ws.Dir())
	if err != nil {
		return err
	}
	j.current = out
	return nil
}

func (w *VideoWorker) upload(ctx context.Context, j *job, started time.Time) (*model.ProcessedVideo, error) {
	p := j.payload
	if err := w.progress(ctx, j, model.StageUploading, "Uploading processed video to storage...", 85); err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("retro-%s-%s.mp4", strings.ToLower(string(j.style)), uuid.New().String())
	key := path.Join(w.processedPrefix, p.UserID, fileName)
	fileURL, err := w.blobs.Upload(ctx, j.current, key)
	if err != nil {
		return nil, apperror.External("Failed to upload processed video", err)
	}

	result := &model.ProcessedVideo{
		ID:                   uuid.New().String(),
		UserID:               p.UserID,
		JobID:                p.JobID,
		SourceVideoID:        p.VideoID,
		ShaderStyle:          j.style,
		FileName:             fileName,
		FileURL:              fileURL,
		StoragePath:          key,
		AdInsertionPoints:    formatInsertionPoints(j.analysis.AdInsertionPoints),
		Schedule:             j.schedule,
		VideoSummary:         j.analysis.VideoSummary,
		ProcessingDurationMs: w.now().Sub(started).Milliseconds(),
		ProcessedAt:          w.now().UTC(),
	}
	if err := w.results.Save(ctx, result); err != nil {
		if delErr := w.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			j.logger.Error().Err(delErr).Str("key", key).Msg("Failed to remove uploaded video after save failure")
		}
		return nil, fmt.Errorf("save processed video: %w", err)
	}
	return result, nil
}

func (w *VideoWorker) progress(ctx context.Context, j *job, stage model.ProcessingStage, info string, pct int) error {
	j.logger.Info().Str("stage", string(stage)).Int("progress", pct).Msg(info)
	if err := w.tracker.UpdateStatus(ctx, j.payload.JobID, j.payload.UserID, stage, info, pct); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	w.broadcastProgress(j.payload.JobID, pct, stage, info)
	return nil
}

func (w *VideoWorker) broadcastProgress(jobID string, pct int, stage model.ProcessingStage, info string) {
	if w.events != nil {
		w.events.BroadcastProgress(jobID, pct, stage, info)
	}
}

// fail records err on the job. The write outlives ctx so a timed out task
// still ends up FAILED.
func (w *VideoWorker) fail(ctx context.Context, p *model.VideoTaskPayload, err error) error {
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	log.Error().Err(err).Str("jobId", p.JobID).Str("userId", p.UserID).Msg("Video processing failed")

	if markErr := w.tracker.MarkFailed(context.WithoutCancel(ctx), p.JobID, p.UserID, msg); markErr != nil {
		log.Error().Err(markErr).Str("jobId", p.JobID).Msg("Failed to record job failure")
	}

	code := apperror.CodeInternal
	if appErr, ok := apperror.From(err); ok {
		code = appErr.Code
	}
	if w.events != nil {
		w.events.BroadcastError(p.JobID, code, msg)
	}
	return err
}

func formatInsertionPoints(points []model.InsertionPoint) []string {
	out := make([]string, 0, len(points))
	for _, pt := range points {
		out = append(out, fmt.Sprintf("%s (priority: %d)", pt.Timestamp, pt.Priority))
	}
	return out
}

func extOf(key string) string {
	if ext := filepath.Ext(key); ext != "" {
		return ext
	}
	return ".mp4"
}
