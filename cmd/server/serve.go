package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/retrocast/api/internal/auth"
	"github.com/retrocast/api/internal/handler"
	"github.com/retrocast/api/internal/middleware"
	"github.com/retrocast/api/internal/service"
	ws "github.com/retrocast/api/internal/websocket"
	"github.com/retrocast/api/pkg/response"
)

var noWorkerFlag bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and, unless --no-worker, a queue worker)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noWorkerFlag, "no-worker", false, "Do not process queued jobs in this process")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	queue := asynq.NewClient(redisOpt(&cfg.Redis))
	defer queue.Close()

	var tokenVerifier auth.TokenVerifier
	if cfg.OIDC.Issuer != "" {
		jwks, err := auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Warn().Err(err).Msg("JWKS verifier not initialized, using legacy tokens only")
		} else {
			defer jwks.Close()
			tokenVerifier = jwks
		}
	}

	pushVerifier, err := auth.NewPushVerifier(cfg.Worker.OIDCJWKSURL, cfg.Worker.BaseURL, cfg.Worker.ServiceAccount)
	if err != nil {
		return err
	}
	defer pushVerifier.Close()

	hub := ws.NewHub()
	go hub.Run(ctx)
	go func() {
		if err := hub.Relay(ctx, in.redis); err != nil {
			log.Error().Err(err).Msg("Job event relay stopped")
		}
	}()

	validate := validator.New()
	dispatch := service.NewDispatchService(in.tracker, in.catalog, queue, in.signer, &cfg.Dispatch)

	router := &handler.Router{
		Health: handler.NewHealthHandler(in.redis, map[string]interface{}{
			"storage":  cfg.Storage.Driver,
			"results":  cfg.Results.Backend,
			"analyzer": cfg.Gemini.APIKey != "",
			"auth":     tokenVerifier != nil || cfg.JWT.Secret != "",
			"worker":   !noWorkerFlag,
		}),
		Auth:           handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret),
		Process:        handler.NewProcessHandler(dispatch, validate),
		Match:          handler.NewMatchHandler(service.NewMatchService(in.catalog), validate),
		Library:        handler.NewLibraryHandler(service.NewLibraryService(in.results, in.blobs)),
		Hub:            hub,
		RateLimiter:    middleware.NewRateLimiter(in.redis),
		PushVerifier:   pushVerifier,
		ProcessPerHour: cfg.RateLimit.ProcessPerHour,
		MatchPerMin:    cfg.RateLimit.MatchPerMin,
	}
	if cfg.Gateway.Enabled {
		log.Info().Msg("Gateway mode enabled, trusting X-User-* headers")
		router.Authenticate = middleware.GatewayAuthMiddleware()
	} else {
		router.Authenticate = middleware.NewAuthMiddleware(tokenVerifier, cfg.JWT.Secret).Authenticate()
	}

	var queueServer *asynq.Server
	if !noWorkerFlag {
		videoWorker, err := newVideoWorker(ctx, cfg, in, publisher(in))
		if err != nil {
			return err
		}
		router.Worker = handler.NewWorkerHandler(videoWorker)

		queueServer = newQueueServer(cfg)
		if err := queueServer.Start(newQueueMux(videoWorker)); err != nil {
			return err
		}
		log.Info().Str("queue", cfg.Dispatch.Queue).Int("concurrency", cfg.Worker.Concurrency).Msg("Embedded worker started")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: response.FromError,
		BodyLimit:    1 * 1024 * 1024,
	})
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
	}
	app.Use(logger.New(logger.Config{Format: logFormat}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	router.Mount(app)

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		if queueServer != nil {
			queueServer.Shutdown()
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Msg("Server starting")
	return app.Listen(addr)
}
