package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/retrocast/api/internal/auth"
	"github.com/retrocast/api/internal/config"
	"github.com/retrocast/api/internal/handler"
	"github.com/retrocast/api/internal/middleware"
	"github.com/retrocast/api/internal/model"
	"github.com/retrocast/api/internal/repository"
	"github.com/retrocast/api/internal/service"
	"github.com/retrocast/api/pkg/response"
)

const (
	testJWTSecret       = "test-secret-for-e2e"
	testAssertionSecret = "test-assertion-secret"
	testQueue           = "e2e-video"
	testUser            = "test-user-123"
)

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	redis   *redis.Client
	catalog *memCatalog
	results *memResults
	runner  *stubRunner
	tracker *service.StatusService
}

// setupApp builds the same routes as `retrocast serve` against Redis DB 15
// with in-memory catalog and result stores. Tests skip without Redis.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { redisClient.Close() })

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })
	t.Cleanup(func() {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: "localhost:6379", DB: 15})
		defer inspector.Close()
		_ = inspector.DeleteQueue(testQueue, true)
	})

	dispatchCfg := &config.DispatchConfig{
		Queue:         testQueue,
		ActiveJobTTL:  time.Hour,
		StatusTTL:     time.Hour,
		TaskTimeout:   time.Minute,
		TaskRetention: time.Minute,
	}
	signer, err := auth.NewAssertionSigner(testAssertionSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	validate := validator.New()
	catalog := newMemCatalog()
	results := &memResults{}
	runner := &stubRunner{}
	tracker := service.NewStatusService(redisClient, dispatchCfg)
	dispatch := service.NewDispatchService(tracker, catalog, asynqClient, signer, dispatchCfg)

	router := &handler.Router{
		Health: handler.NewHealthHandler(redisClient, map[string]interface{}{
			"storage":  "memory",
			"analyzer": false,
		}),
		Auth:         handler.NewAuthHandler(nil, testJWTSecret),
		Process:      handler.NewProcessHandler(dispatch, validate),
		Match:        handler.NewMatchHandler(service.NewMatchService(catalog), validate),
		Library:      handler.NewLibraryHandler(service.NewLibraryService(results, nil)),
		Worker:       handler.NewWorkerHandler(runner),
		Authenticate: middleware.NewAuthMiddleware(nil, testJWTSecret).Authenticate(),
		RateLimiter:  middleware.NewRateLimiter(redisClient),
		PushVerifier: nil,
		// Very high limits so tests don't get blocked
		ProcessPerHour: 10000,
		MatchPerMin:    10000,
	}

	app := fiber.New(fiber.Config{ErrorHandler: response.FromError})
	router.Mount(app)

	return &testApp{
		app:     app,
		redis:   redisClient,
		catalog: catalog,
		results: results,
		runner:  runner,
		tracker: tracker,
	}
}

// newUser returns a fresh user id so Redis state never leaks between tests.
func newUser() string {
	return "user-" + uuid.New().String()
}

// generateToken creates a legacy HMAC JWT for the default test user.
func generateToken(t *testing.T) string {
	t.Helper()
	return tokenFor(t, testUser)
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.GenerateLegacyToken(testJWTSecret, userID, userID+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as the default test user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequestAs(t, app, testUser, method, path, body)
}

func doRequestAs(t *testing.T, app *fiber.App, userID, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + tokenFor(t, userID),
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// memCatalog is an in-memory catalog keyed by owner.
type memCatalog struct {
	mu         sync.Mutex
	videos     map[string]string
	ads        map[string]string
	candidates map[string]model.AdCandidate
	analyses   map[string]*model.AnalysisResult
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		videos:     map[string]string{},
		ads:        map[string]string{},
		candidates: map[string]model.AdCandidate{},
		analyses:   map[string]*model.AnalysisResult{},
	}
}

func (c *memCatalog) addVideo(userID, videoID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videos[videoID] = userID
}

func (c *memCatalog) addAd(userID string, cand model.AdCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ads[cand.ID] = userID
	c.candidates[cand.ID] = cand
}

func (c *memCatalog) GetVideo(_ context.Context, userID, videoID string) (*model.SourceVideo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.videos[videoID] != userID {
		return nil, repository.ErrNotFound
	}
	return &model.SourceVideo{ID: videoID, UserID: userID, StoragePath: "videos/" + videoID + ".mp4"}, nil
}

func (c *memCatalog) GetAds(_ context.Context, userID string, adIDs []string) ([]model.AdAsset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.AdAsset
	for _, id := range adIDs {
		if c.ads[id] == userID {
			out = append(out, model.AdAsset{ID: id, UserID: userID, StoragePath: "ads/" + id + ".mp4"})
		}
	}
	return out, nil
}

func (c *memCatalog) GetAdCandidates(_ context.Context, userID string, adIDs []string) ([]model.AdCandidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.AdCandidate
	for _, id := range adIDs {
		if cand, ok := c.candidates[id]; ok && c.ads[id] == userID {
			out = append(out, cand)
		}
	}
	return out, nil
}

func (c *memCatalog) GetAnalysis(_ context.Context, userID, videoID string) (*model.AnalysisResult, float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.analyses[videoID]
	if !ok || c.videos[videoID] != userID {
		return nil, 0, repository.ErrNotFound
	}
	return a, 600, nil
}

func (c *memCatalog) SaveAnalysis(_ context.Context, _, videoID string, result *model.AnalysisResult, _ float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyses[videoID] = result
	return nil
}

type memResults struct {
	mu     sync.Mutex
	videos []model.ProcessedVideo
}

func (r *memResults) Save(_ context.Context, v *model.ProcessedVideo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos = append(r.videos, *v)
	return nil
}

func (r *memResults) ListByUser(_ context.Context, userID string, limit int) ([]model.ProcessedVideo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProcessedVideo
	for i := len(r.videos) - 1; i >= 0; i-- {
		if r.videos[i].UserID == userID {
			out = append(out, r.videos[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// stubRunner stands in for the media pipeline behind the push endpoint.
type stubRunner struct {
	err      error
	payloads []*model.VideoTaskPayload
}

func (s *stubRunner) Run(_ context.Context, p *model.VideoTaskPayload) (*model.ProcessedVideo, error) {
	s.payloads = append(s.payloads, p)
	if s.err != nil {
		return nil, s.err
	}
	return &model.ProcessedVideo{ID: "pv-" + p.JobID, FileURL: "https://cdn.test/" + p.JobID + ".mp4"}, nil
}
