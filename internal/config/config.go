package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// 画像生成バックエンドの種別。
const (
	ImageBackendOpenAI = "openai"
	ImageBackendImagen = "imagen"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret          string
	SessionMaxAge          int
	SessionCleanupSchedule string

	// Image generation
	ImageBackend     string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIImageModel string
	GeminiAPIKey     string
	ImagenModel      string

	// Generation
	GenerationTimeout   time.Duration
	VideoSimulatedDelay time.Duration
	VideoSampleURL      string

	// Download
	DownloadTimeout time.Duration
	DownloadMaxSize int64

	// Workspace
	WorkspaceIdleTTL time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitGenerate int

	// Storage (MinIO / S3互換)
	StorageEndpoint      string
	StorageAccessKey     string
	StorageSecretKey     string
	StorageBucket        string
	StorageUseSSL        bool
	StoragePresignExpiry time.Duration

	// Logging
	LogLevel         slog.Level
	LogFile          string
	LogRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が1つでも欠けていればまとめてエラーにする。
// 任意項目の値が解釈できない場合は警告ログを出して既定値を使う。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = require("DATABASE_URL")
	cfg.GoogleClientID = require("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = require("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = require("GOOGLE_REDIRECT_URL")
	cfg.SessionSecret = require("SESSION_SECRET")
	cfg.BaseURL = require("BASE_URL")
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.SessionMaxAge = envOr("SESSION_MAX_AGE", 86400, strconv.Atoi)
	cfg.SessionCleanupSchedule = envOr("SESSION_CLEANUP_SCHEDULE", "0 3 * * *", asString)

	cfg.ImageBackend = strings.ToLower(envOr("IMAGE_BACKEND", ImageBackendOpenAI, asString))
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = envOr("OPENAI_BASE_URL", "https://api.openai.com/v1", asString)
	cfg.OpenAIImageModel = envOr("OPENAI_IMAGE_MODEL", "gpt-image-1", asString)
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.ImagenModel = envOr("IMAGEN_MODEL", "imagen-4.0-generate-001", asString)

	cfg.GenerationTimeout = envOr("GENERATION_TIMEOUT", 2*time.Minute, time.ParseDuration)
	cfg.VideoSimulatedDelay = envOr("VIDEO_SIMULATED_DELAY", 8*time.Second, time.ParseDuration)
	cfg.VideoSampleURL = os.Getenv("VIDEO_SAMPLE_URL")

	cfg.DownloadTimeout = envOr("DOWNLOAD_TIMEOUT", 30*time.Second, time.ParseDuration)
	cfg.DownloadMaxSize = envOr("DOWNLOAD_MAX_SIZE", int64(200<<20), parseInt64)

	cfg.WorkspaceIdleTTL = envOr("WORKSPACE_IDLE_TTL", 2*time.Hour, time.ParseDuration)

	cfg.RateLimitGeneral = envOr("RATE_LIMIT_GENERAL", 120, strconv.Atoi)
	cfg.RateLimitGenerate = envOr("RATE_LIMIT_GENERATE", 10, strconv.Atoi)

	cfg.StorageEndpoint = os.Getenv("STORAGE_ENDPOINT")
	cfg.StorageAccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	cfg.StorageSecretKey = os.Getenv("STORAGE_SECRET_KEY")
	cfg.StorageBucket = envOr("STORAGE_BUCKET", "genstudio", asString)
	cfg.StorageUseSSL = envOr("STORAGE_USE_SSL", false, strconv.ParseBool)
	cfg.StoragePresignExpiry = envOr("STORAGE_PRESIGN_EXPIRY", 24*time.Hour, time.ParseDuration)

	cfg.LogLevel = envOr("LOG_LEVEL", slog.LevelInfo, parseLevel)
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.LogRetentionDays = envOr("LOG_RETENTION_DAYS", 14, strconv.Atoi)

	cfg.ServerPort = envOr("SERVER_PORT", "8080", asString)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = os.Getenv("COOKIE_DOMAIN")
	cfg.CORSAllowedOrigin = os.Getenv("CORS_ALLOWED_ORIGIN")

	switch cfg.ImageBackend {
	case ImageBackendOpenAI, ImageBackendImagen:
	default:
		return nil, fmt.Errorf("IMAGE_BACKEND must be %q or %q, got %q", ImageBackendOpenAI, ImageBackendImagen, cfg.ImageBackend)
	}

	return cfg, nil
}

// StorageEnabled はオブジェクトストレージが設定されているかを返す。
// 未設定の場合、生成画像はdata: URLとして保持する。
func (c *Config) StorageEnabled() bool {
	return c.StorageEndpoint != ""
}

// ImageBackendKey は選択中の画像生成バックエンドのAPIキーを返す。
// serveコマンドの起動時に空でないことを確認する。
func (c *Config) ImageBackendKey() (name, key string) {
	if c.ImageBackend == ImageBackendImagen {
		return "GEMINI_API_KEY", c.GeminiAPIKey
	}
	return "OPENAI_API_KEY", c.OpenAIAPIKey
}

// envOr はkeyの値をparseで解釈して返す。未設定なら既定値、解釈できなければ警告して既定値。
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		slog.Warn("invalid environment variable, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Any("default", def),
		)
		return def
	}
	return v
}

func asString(s string) (string, error) { return s, nil }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// parseLevel はdebug/info/warn/errorを受け付ける。大文字小文字は区別しない。
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
