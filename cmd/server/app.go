package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/auth"
	"github.com/retrocast/api/internal/client"
	"github.com/retrocast/api/internal/config"
	"github.com/retrocast/api/internal/logging"
	"github.com/retrocast/api/internal/media"
	"github.com/retrocast/api/internal/repository"
	"github.com/retrocast/api/internal/service"
	"github.com/retrocast/api/internal/worker"
	ws "github.com/retrocast/api/internal/websocket"
)

// infra holds the connections shared by every subcommand that serves jobs.
type infra struct {
	redis   *redis.Client
	db      *repository.DB
	catalog *repository.CatalogRepository
	results repository.ProcessedStore
	blobs   client.BlobStore
	tracker *service.StatusService
	signer  *auth.AssertionSigner
	closers []func()
}

func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}

func redisOpt(c *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.Addr, Password: c.Password, DB: c.DB}
}

func openInfra(ctx context.Context, cfg *config.Config) (*infra, error) {
	in := &infra{}

	in.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	in.closers = append(in.closers, func() { in.redis.Close() })
	if err := in.redis.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis not available")
	}

	if cfg.Database.URL == "" {
		in.Close()
		return nil, fmt.Errorf("database.url is required")
	}
	db, err := repository.Open(ctx, cfg.Database.URL)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.db = db
	in.closers = append(in.closers, func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		in.Close()
		return nil, err
	}
	in.catalog = repository.NewCatalogRepository(db)

	results, err := newResultStore(ctx, cfg, db)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.results = results

	blobs, err := client.NewBlobStore(ctx, &cfg.Storage)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	in.blobs = blobs

	in.tracker = service.NewStatusService(in.redis, &cfg.Dispatch)

	signer, err := auth.NewAssertionSigner(cfg.Worker.AssertionSecret, cfg.Dispatch.ActiveJobTTL)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.signer = signer

	return in, nil
}

func newResultStore(ctx context.Context, cfg *config.Config, db *repository.DB) (repository.ProcessedStore, error) {
	switch cfg.Results.Backend {
	case "", "postgres":
		return repository.NewPostgresProcessedStore(db), nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Results.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		log.Info().Str("table", cfg.Results.DynamoTable).Msg("Storing results in DynamoDB")
		return repository.NewDynamoProcessedStore(dynamodb.NewFromConfig(awsCfg), cfg.Results.DynamoTable), nil
	default:
		return nil, fmt.Errorf("unknown results backend %q", cfg.Results.Backend)
	}
}

func newVideoWorker(ctx context.Context, cfg *config.Config, in *infra, events worker.Broadcaster) (*worker.VideoWorker, error) {
	analyzer, err := client.NewGeminiClient(ctx, &cfg.Gemini)
	if err != nil {
		return nil, fmt.Errorf("content analyzer: %w", err)
	}

	return worker.NewVideoWorker(worker.Dependencies{
		Tracker:    in.tracker,
		Catalog:    in.catalog,
		Blobs:      in.blobs,
		Analyzer:   analyzer,
		Transcoder: media.NewFFmpeg(cfg.Worker.FFmpegPath, cfg.Worker.FFprobePath),
		Results:    in.results,
		Assertions: in.signer,
		Events:     events,
	}, worker.Options{
		TempDir:         cfg.Worker.TempDir,
		ProcessedPrefix: cfg.Storage.ProcessedPrefix,
	}), nil
}

func newQueueServer(cfg *config.Config) *asynq.Server {
	return asynq.NewServer(redisOpt(&cfg.Redis), asynq.Config{
		Concurrency:     cfg.Worker.Concurrency,
		Queues:          map[string]int{cfg.Dispatch.Queue: 1},
		LogLevel:        logging.AsynqLevel(cfg.Server.LogLevel),
		Logger:          logging.AsynqLogger{},
		ShutdownTimeout: 30 * time.Second,
	})
}

func newQueueMux(w *worker.VideoWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeVideoProcess, w.ProcessTask)
	return mux
}

// publisher returns the event sink for workers: Redis pub/sub, relayed to
// sockets by whichever API process holds them.
func publisher(in *infra) worker.Broadcaster {
	return ws.NewRedisPublisher(in.redis)
}
