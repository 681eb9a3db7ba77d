package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Dispatch  DispatchConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Gemini    GeminiConfig
	Database  DatabaseConfig
	Results   ResultsConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

// IsDevelopment is true outside production deployments.
func (s ServerConfig) IsDevelopment() bool {
	return s.Env == "" || strings.EqualFold(s.Env, "development")
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// OIDCConfig is the identity provider for end-user tokens
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type GatewayConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	ProcessPerHour int
	MatchPerMin    int
}

type DispatchConfig struct {
	Queue         string
	ActiveJobTTL  time.Duration
	StatusTTL     time.Duration
	TaskTimeout   time.Duration
	TaskRetention time.Duration
}

type WorkerConfig struct {
	Concurrency     int
	TempDir         string
	BaseURL         string // push-delivery audience; empty disables OIDC checks
	ServiceAccount  string
	OIDCJWKSURL     string
	AssertionSecret string
	FFmpegPath      string
	FFprobePath     string
}

type StorageConfig struct {
	Driver          string // "s3" or "minio"
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
	UseSSL          bool
	ProcessedPrefix string
}

type GeminiConfig struct {
	APIKey       string
	Model        string
	PollInterval time.Duration
	PollAttempts int
}

type DatabaseConfig struct {
	URL string
}

type ResultsConfig struct {
	Backend     string // "postgres" or "dynamodb"
	DynamoTable string
	Region      string
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("WORKER_ASSERTION_SECRET")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("GEMINI_API_KEY")
	readSecret("DATABASE_URL")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":                "SERVER_PORT",
		"server.env":                 "SERVER_ENV",
		"server.log_level":           "LOG_LEVEL",
		"server.api_domain":          "API_DOMAIN",
		"redis.addr":                 "REDIS_ADDR",
		"redis.password":             "REDIS_PASSWORD",
		"redis.db":                   "REDIS_DB",
		"jwt.secret":                 "JWT_SECRET",
		"oidc.issuer":                "OIDC_ISSUER",
		"oidc.client_id":             "OIDC_CLIENT_ID",
		"gateway.enabled":            "GATEWAY_ENABLED",
		"ratelimit.process_per_hour": "RATELIMIT_PROCESS_PER_HOUR",
		"ratelimit.match_per_min":    "RATELIMIT_MATCH_PER_MIN",
		"dispatch.queue":             "DISPATCH_QUEUE",
		"dispatch.active_job_ttl":    "DISPATCH_ACTIVE_JOB_TTL",
		"dispatch.status_ttl":        "DISPATCH_STATUS_TTL",
		"dispatch.task_timeout":      "DISPATCH_TASK_TIMEOUT",
		"dispatch.task_retention":    "DISPATCH_TASK_RETENTION",
		"worker.concurrency":         "WORKER_CONCURRENCY",
		"worker.temp_dir":            "WORKER_TEMP_DIR",
		"worker.base_url":            "WORKER_BASE_URL",
		"worker.service_account":     "WORKER_SERVICE_ACCOUNT",
		"worker.oidc_jwks_url":       "WORKER_OIDC_JWKS_URL",
		"worker.assertion_secret":    "WORKER_ASSERTION_SECRET",
		"worker.ffmpeg_path":         "FFMPEG_PATH",
		"worker.ffprobe_path":        "FFPROBE_PATH",
		"storage.driver":             "STORAGE_DRIVER",
		"storage.endpoint":           "STORAGE_ENDPOINT",
		"storage.region":             "STORAGE_REGION",
		"storage.access_key_id":      "STORAGE_ACCESS_KEY_ID",
		"storage.secret_access_key":  "STORAGE_SECRET_ACCESS_KEY",
		"storage.bucket":             "STORAGE_BUCKET",
		"storage.public_url":         "STORAGE_PUBLIC_URL",
		"storage.use_ssl":            "STORAGE_USE_SSL",
		"storage.processed_prefix":   "STORAGE_PROCESSED_PREFIX",
		"gemini.api_key":             "GEMINI_API_KEY",
		"gemini.model":               "GEMINI_MODEL",
		"gemini.poll_interval":       "GEMINI_POLL_INTERVAL",
		"gemini.poll_attempts":       "GEMINI_POLL_ATTEMPTS",
		"database.url":               "DATABASE_URL",
		"results.backend":            "RESULTS_BACKEND",
		"results.dynamo_table":       "RESULTS_DYNAMO_TABLE",
		"results.region":             "RESULTS_REGION",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("gateway.enabled", false)
	v.SetDefault("ratelimit.process_per_hour", 10)
	v.SetDefault("ratelimit.match_per_min", 30)

	v.SetDefault("dispatch.queue", "video")
	v.SetDefault("dispatch.active_job_ttl", 6*time.Hour)
	v.SetDefault("dispatch.status_ttl", 72*time.Hour)
	v.SetDefault("dispatch.task_timeout", 2*time.Hour)
	v.SetDefault("dispatch.task_retention", 24*time.Hour)

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.temp_dir", os.TempDir()+"/retrocast")
	v.SetDefault("worker.oidc_jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("worker.ffmpeg_path", "ffmpeg")
	v.SetDefault("worker.ffprobe_path", "ffprobe")

	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "videos")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.processed_prefix", "processed")

	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.poll_interval", time.Second)
	v.SetDefault("gemini.poll_attempts", 60)

	v.SetDefault("results.backend", "postgres")
	v.SetDefault("results.dynamo_table", "processed_videos")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		OIDC: OIDCConfig{
			Issuer:   v.GetString("oidc.issuer"),
			ClientID: v.GetString("oidc.client_id"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		RateLimit: RateLimitConfig{
			ProcessPerHour: v.GetInt("ratelimit.process_per_hour"),
			MatchPerMin:    v.GetInt("ratelimit.match_per_min"),
		},
		Dispatch: DispatchConfig{
			Queue:         v.GetString("dispatch.queue"),
			ActiveJobTTL:  v.GetDuration("dispatch.active_job_ttl"),
			StatusTTL:     v.GetDuration("dispatch.status_ttl"),
			TaskTimeout:   v.GetDuration("dispatch.task_timeout"),
			TaskRetention: v.GetDuration("dispatch.task_retention"),
		},
		Worker: WorkerConfig{
			Concurrency:     v.GetInt("worker.concurrency"),
			TempDir:         v.GetString("worker.temp_dir"),
			BaseURL:         v.GetString("worker.base_url"),
			ServiceAccount:  v.GetString("worker.service_account"),
			OIDCJWKSURL:     v.GetString("worker.oidc_jwks_url"),
			AssertionSecret: v.GetString("worker.assertion_secret"),
			FFmpegPath:      v.GetString("worker.ffmpeg_path"),
			FFprobePath:     v.GetString("worker.ffprobe_path"),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(v.GetString("storage.driver")),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			Bucket:          v.GetString("storage.bucket"),
			PublicURL:       v.GetString("storage.public_url"),
			UseSSL:          v.GetBool("storage.use_ssl"),
			ProcessedPrefix: v.GetString("storage.processed_prefix"),
		},
		Gemini: GeminiConfig{
			APIKey:       v.GetString("gemini.api_key"),
			Model:        v.GetString("gemini.model"),
			PollInterval: v.GetDuration("gemini.poll_interval"),
			PollAttempts: v.GetInt("gemini.poll_attempts"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Results: ResultsConfig{
			Backend:     strings.ToLower(v.GetString("results.backend")),
			DynamoTable: v.GetString("results.dynamo_table"),
			Region:      v.GetString("results.region"),
		},
	}

	// The assertion secret falls back to the user JWT secret in development.
	if cfg.Worker.AssertionSecret == "" {
		cfg.Worker.AssertionSecret = cfg.JWT.Secret
	}

	return cfg, nil
}
