package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/genstudio/internal/auth"
	"github.com/hitoshi/genstudio/internal/config"
	"github.com/hitoshi/genstudio/internal/database"
	"github.com/hitoshi/genstudio/internal/handler"
	"github.com/hitoshi/genstudio/internal/imagen"
	"github.com/hitoshi/genstudio/internal/logger"
	"github.com/hitoshi/genstudio/internal/metrics"
	"github.com/hitoshi/genstudio/internal/middleware"
	"github.com/hitoshi/genstudio/internal/openai"
	"github.com/hitoshi/genstudio/internal/repository"
	"github.com/hitoshi/genstudio/internal/security"
	"github.com/hitoshi/genstudio/internal/storage"
	"github.com/hitoshi/genstudio/internal/studio"
	"github.com/hitoshi/genstudio/internal/worker/cleanup"
)

// workspaceSweepInterval はアイドルWorkspaceを掃除する間隔。
const workspaceSweepInterval = 5 * time.Minute

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envは開発用。存在しなくてもエラーにしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", slog.String("error", err.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// LOG_FILEが指定された場合はローテーション付きファイルにも出力する
	out, closer := logger.TeeFile(w, cfg.LogFile, cfg.LogRetentionDays)
	defer closer.Close()
	logger.SetupDefault(out, cfg.LogLevel)

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return fmt.Errorf("unsupported command %q", cmd)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 生成バックエンドの鍵はDBより先に検証する
	if name, key := cfg.ImageBackendKey(); key == "" {
		return fmt.Errorf("%s is required for image backend %q", name, cfg.ImageBackend)
	}

	// 2. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 3. リポジトリと認証サービス
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	hub := auth.NewHub()
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo, hub,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 4. 生成結果の保存先（任意）
	store, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 5. メトリクス
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(promRegistry)

	// 6. 生成フロー
	registry, err := newWorkspaceRegistry(ctx, cfg, store, collector)
	if err != nil {
		return err
	}
	metrics.RegisterWorkspaceGauge(promRegistry, registry.Len)
	go registry.Run(ctx, workspaceSweepInterval)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	healthChecks := []handler.HealthCheck{
		{Name: "database", Check: db.PingContext},
	}
	if store != nil {
		healthChecks = append(healthChecks, handler.HealthCheck{Name: "storage", Check: storageCheck(store)})
	}

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    rateLimiter,
		HealthChecks:   healthChecks,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(promRegistry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			StateSecret:   cfg.SessionSecret,
		},
		OnLogout: registry.Drop,
		Hub:      hub,

		Workspaces:      registry,
		PromptSanitizer: security.NewPromptSanitizer(0),
		StudioConfig:    handler.StudioHandlerConfig{GenerationTimeout: cfg.GenerationTimeout},
	})

	// 8. HTTPサーバーの起動
	// SSEと生成の待ち時間があるためWriteTimeoutは設けない。
	// BaseContextはシャットダウン時にSSEの接続も終了させるためのもの。
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("image_backend", cfg.ImageBackend),
			slog.Bool("storage_enabled", store != nil),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、cron式に従ってクリーンアップジョブを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. 生成結果の保存先（任意）
	store, err := newArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 3. スケジューラの構築
	var pruner cleanup.ArtifactPruner
	if store != nil {
		pruner = store
	}
	scheduler, err := cleanup.NewScheduler(cfg.SessionCleanupSchedule, slog.Default(), cleanupJobs(cfg, repository.NewPostgresSessionRepo(db), pruner)...)
	if err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.String("schedule", cfg.SessionCleanupSchedule),
		slog.Bool("storage_enabled", store != nil),
	)

	// 起動直後に1回実行してから定期実行に入る
	scheduler.RunOnce(ctx)
	scheduler.Run(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// newArtifactStore はSTORAGE_ENDPOINTが設定されている場合にMinIOクライアントを生成し、
// バケットを用意する。未設定の場合はnilを返す。
func newArtifactStore(ctx context.Context, cfg *config.Config) (*storage.Client, error) {
	if !cfg.StorageEnabled() {
		return nil, nil
	}
	store, err := storage.NewClient(storage.Config{
		Endpoint:      cfg.StorageEndpoint,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		Bucket:        cfg.StorageBucket,
		UseSSL:        cfg.StorageUseSSL,
		PresignExpiry: cfg.StoragePresignExpiry,
		MaxObjectSize: cfg.DownloadMaxSize,
	}, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// newImageGenerator は設定されたバックエンドの画像生成クライアントを返す。
func newImageGenerator(ctx context.Context, cfg *config.Config, store studio.ArtifactStore) (studio.ImageGenerator, error) {
	switch cfg.ImageBackend {
	case config.ImageBackendImagen:
		c, err := imagen.NewClient(ctx, imagen.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.ImagenModel,
		}, store, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to create imagen client: %w", err)
		}
		return c, nil
	default:
		return openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIImageModel,
			HTTPClient: &http.Client{Timeout: cfg.GenerationTimeout},
		}, store, slog.Default()), nil
	}
}

// newWorkspaceRegistry は生成バックエンドとダウンロード用フェッチャーを組み立て、
// セッションごとのWorkspaceを管理するRegistryを返す。
func newWorkspaceRegistry(ctx context.Context, cfg *config.Config, store *storage.Client, recorder studio.Recorder) (*studio.Registry, error) {
	// nilの*storage.Clientをインターフェースに入れない
	var (
		artifacts studio.ArtifactStore
		locals    []studio.LocalSource
	)
	if store != nil {
		artifacts = store
		locals = append(locals, store)
	}

	images, err := newImageGenerator(ctx, cfg, artifacts)
	if err != nil {
		return nil, err
	}
	videos := studio.NewSimulatedVideoGenerator(cfg.VideoSimulatedDelay, cfg.VideoSampleURL)

	guard := security.NewSSRFGuard()
	fetcher := studio.NewHTTPFetcher(guard.NewSafeClient(cfg.DownloadTimeout), guard, cfg.DownloadMaxSize, locals...)

	logger := slog.Default()
	factory := func() *studio.Workspace {
		return &studio.Workspace{
			Image: studio.NewImageFlow(images, fetcher, recorder, logger),
			Video: studio.NewVideoFlow(videos, fetcher, recorder, logger),
		}
	}
	return studio.NewRegistry(factory, cfg.WorkspaceIdleTTL, logger), nil
}

// rateLimiterConfig はreq/min単位の設定値をレートリミッター用のreq/secに変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitGenerate > 0 {
		rl.GenerationRate = rate.Limit(float64(cfg.RateLimitGenerate) / 60.0)
		rl.GenerationBurst = cfg.RateLimitGenerate
	}
	return rl
}

// cleanupJobs はworkerで実行するジョブ一覧を返す。
// 保存先が有効な場合は署名付きURLの期限を過ぎた生成結果も削除する。
func cleanupJobs(cfg *config.Config, sessions cleanup.SessionPurger, store cleanup.ArtifactPruner) []cleanup.Job {
	jobs := []cleanup.Job{cleanup.NewSessionCleanupJob(sessions, slog.Default())}
	if store != nil {
		jobs = append(jobs, cleanup.NewArtifactCleanupJob(store, cfg.StoragePresignExpiry, slog.Default()))
	}
	return jobs
}

// storageCheck はMinIOの疎通をヘルスチェック用の関数に変換する。
func storageCheck(store *storage.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if !store.Healthy(ctx) {
			return errors.New("storage unavailable")
		}
		return nil
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
