package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hitoshi/astroline/internal/auth"
	"github.com/hitoshi/astroline/internal/config"
	"github.com/hitoshi/astroline/internal/database"
	"github.com/hitoshi/astroline/internal/generation"
	"github.com/hitoshi/astroline/internal/handler"
	"github.com/hitoshi/astroline/internal/lock"
	"github.com/hitoshi/astroline/internal/logger"
	"github.com/hitoshi/astroline/internal/metrics"
	"github.com/hitoshi/astroline/internal/middleware"
	"github.com/hitoshi/astroline/internal/model"
	"github.com/hitoshi/astroline/internal/provisioning"
	"github.com/hitoshi/astroline/internal/quota"
	"github.com/hitoshi/astroline/internal/repository"
	"github.com/hitoshi/astroline/internal/security"
	"github.com/hitoshi/astroline/internal/worker/cleanup"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// redisLockPrefix はRedis上のロックキーの接頭辞。
const redisLockPrefix = "astroline:lock:"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

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

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("quota_time_zone", cfg.QuotaLocation.String()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// openDatabase はdatabase/sqlの接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newLocker はREDIS_URLが設定されていればRedisLocker、なければプロセス内ロックを返す。
// 返すclose関数は必ず呼び出す。
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URLが未設定のため、プロセス内ロックを使用します（単一インスタンス構成のみ）")
		return lock.NewMemoryLocker(), func() {}, nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	locker, err := lock.NewRedisLocker(client, redisLockPrefix)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	slog.Info("redis connection established")
	return locker, func() { client.Close() }, nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// serverDeps はAPIサーバーの外部リソース。
type serverDeps struct {
	db        *sql.DB
	pool      *pgxpool.Pool
	locker    lock.Locker
	registry  *prometheus.Registry
	collector *metrics.Collector
}

// buildRouter は全依存関係をワイヤリングしてルーターを構築する。
func buildRouter(cfg *config.Config, deps serverDeps, rateLimiter *middleware.RateLimiter) http.Handler {
	log := slog.Default()

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(deps.db)
	sketchRepo := repository.NewPostgresSketchRepo(deps.db)
	deliveryRepo := repository.NewPostgresWebhookDeliveryRepo(deps.db)
	activityRepo := repository.NewPostgresActivityRepo(deps.pool)

	// 2. 認証・プロビジョニング
	hasher := auth.BcryptHasher{}
	authService := auth.NewService(userRepo, hasher, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL))
	provisioner := provisioning.NewService(userRepo, deps.locker, hasher, cfg.ProvisionDefaultPassword, deps.collector)

	// 3. 日次上限
	guard := quota.NewGuard(activityRepo, quota.Options{
		Location: cfg.QuotaLocation,
		FailOpen: cfg.QuotaFailOpen,
		Logger:   log,
		Recorder: deps.collector,
	})

	// 4. 生成プロバイダー
	provider := generation.NewOpenAIClient(
		&http.Client{Timeout: cfg.GenerationTimeout},
		security.NewImageFetcher(cfg.GenerationTimeout, security.DefaultMaxImageBytes),
		log,
		generation.OpenAIConfig{
			BaseURL:    cfg.GenerationBaseURL,
			APIKey:     cfg.GenerationAPIKey,
			ImageModel: cfg.GenerationImageModel,
			TextModel:  cfg.GenerationTextModel,
		},
	)
	if cfg.GenerationAPIKey == "" {
		slog.Warn("GENERATION_API_KEYが未設定です。生成リクエストは設定エラーになります")
	}

	generator := generation.NewService(generation.Deps{
		Locker:     deps.locker,
		Guard:      guard,
		Ledger:     activityRepo,
		Sketches:   sketchRepo,
		Provider:   provider,
		Sanitizer:  security.NewTextSanitizer(),
		Clock:      quota.SystemClock,
		Recorder:   deps.collector,
		Logger:     log,
		DailyLimit: cfg.LoveSketchDailyLimit,
		Timeout:    generationDeadline(cfg),
	})

	// 5. ルーターの構築
	return handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    deps.collector,
		Logger:            log,

		HealthChecker:  deps.db,
		MetricsHandler: metrics.Handler(deps.registry),

		AuthService: authService,

		WebhookHandler: handler.NewWebhookHandler(provisioner, deliveryRepo, deps.collector, handler.WebhookConfig{
			Secret:       cfg.WebhookSecret,
			MaxBodyBytes: cfg.WebhookMaxBodyBytes,
		}, log),

		SketchGenerator: generator,
		QuotaHandler: handler.NewQuotaHandler(guard, quota.SystemClock, map[model.ActivityCategory]int{
			model.CategoryLoveSketch: cfg.LoveSketchDailyLimit,
		}),
	})
}

// runServe はAPIサーバーモードで起動する。
// DB・Redisに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
// generationDeadline は1回の生成全体の期限を返す。
// 画像生成・画像取得・解釈テキストはそれぞれGenerationTimeoutで打ち切られるが、全体ではこの期限に収める。
func generationDeadline(cfg *config.Config) time.Duration {
	return 2 * cfg.GenerationTimeout
}

// writeTimeout は生成の期限切れレスポンスを書き終えられるだけの余裕を持たせる。
func writeTimeout(cfg *config.Config) time.Duration {
	return generationDeadline(cfg) + 30*time.Second
}

func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続（Identity Store等はdatabase/sql、Activity LedgerはpgxPool）
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pool, err := database.OpenPool(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open connection pool: %w", err)
	}
	defer pool.Close()

	slog.Info("database connection established")

	// 2. ロック
	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up locker: %w", err)
	}
	defer closeLocker()

	// 3. メトリクス
	registry, collector := newRegistry()

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWebhook))
	defer rateLimiter.Stop()

	router := buildRouter(cfg, serverDeps{
		db:        db,
		pool:      pool,
		locker:    locker,
		registry:  registry,
		collector: collector,
	}, rateLimiter)

	// 5. HTTPサーバーの起動（生成処理を待つため書き込みタイムアウトは長め）
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、Webhook配信記録のクリーンアップジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	job := cleanup.NewJob(db, slog.Default(), cfg.LogRetentionDays)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしでは未適用分をすべて適用し、"down [N]" では直近N件（既定1件）を取り消す。
func runMigrate(cfg *config.Config, args []string) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if len(args) > 0 && args[0] == "down" {
		steps, err := parseRollbackSteps(args[1:])
		if err != nil {
			return err
		}
		st, err := database.RollbackMigrations(cfg.DatabaseURL, steps)
		if err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back",
			slog.Int("steps", steps),
			slog.Uint64("version", uint64(st.Version)),
		)
		return nil
	}

	st, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(st.Version)),
		slog.Bool("dirty", st.Dirty),
	)
	return nil
}

// parseRollbackSteps は"migrate down"に続く取り消し件数を解析する。
func parseRollbackSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil || steps <= 0 {
		return 0, fmt.Errorf("invalid rollback steps %q: must be a positive integer", args[0])
	}
	return steps, nil
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
