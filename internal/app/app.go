package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/subwatch/internal/auth"
	"github.com/hitoshi/subwatch/internal/config"
	"github.com/hitoshi/subwatch/internal/database"
	"github.com/hitoshi/subwatch/internal/handler"
	"github.com/hitoshi/subwatch/internal/logger"
	"github.com/hitoshi/subwatch/internal/metrics"
	"github.com/hitoshi/subwatch/internal/middleware"
	"github.com/hitoshi/subwatch/internal/monitor"
	"github.com/hitoshi/subwatch/internal/reddit"
	"github.com/hitoshi/subwatch/internal/repository"
	"github.com/hitoshi/subwatch/internal/worker"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("reddit_enabled", cfg.RedditEnabled()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとスケジューラを
// 起動する。SIGINTまたはSIGTERMシグナルを受信するとグレースフル
// シャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	monitorRepo := repository.NewPostgresMonitorRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	runRepo := repository.NewPostgresRunRepo(db)
	statsRepo := repository.NewPostgresStatsRepo(db)

	// 3. メトリクスの初期化
	m := metrics.New()

	// 4. 認証サービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 5. モニター実行系の初期化。Reddit認証情報が未設定の場合、
	// モニターのCRUDのみ提供し、スケジューリングと実行は無効化する。
	var runner *monitor.Runner
	var scheduler *monitor.Scheduler
	var execIface monitor.RunExecutor
	var schedIface monitor.ScheduleManager
	if cfg.RedditEnabled() {
		redditClient := reddit.NewClient(
			reddit.Config{
				ClientID:     cfg.RedditClientID,
				ClientSecret: cfg.RedditClientSecret,
				RefreshToken: cfg.RedditRefreshToken,
				UserAgent:    cfg.RedditUserAgent,
			},
			&http.Client{Timeout: 30 * time.Second},
			slog.Default(),
			cfg.RedditAPIInterval,
		)
		runner = monitor.NewRunner(
			redditClient, monitorRepo, postRepo, commentRepo, runRepo,
			m, slog.Default(),
			monitor.RunnerConfig{
				PostFetchLimit:    cfg.PostFetchLimit,
				CommentPostLimit:  cfg.CommentPostLimit,
				CommentFetchLimit: cfg.CommentFetchLimit,
				TrailingWindow:    cfg.TrailingWindow,
				RunTimeout:        cfg.RunTimeout,
			},
		)
		scheduler = monitor.NewScheduler(runner, monitorRepo, slog.Default())
		execIface = runner
		schedIface = scheduler
	} else {
		slog.Warn("reddit credentials not configured, scheduling disabled")
	}

	monitorService := monitor.NewService(
		monitorRepo, postRepo, commentRepo, runRepo, statsRepo,
		execIface, schedIface, slog.Default(),
	)

	// 6. レート制限の初期化
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralPerMin = cfg.RateLimitGeneral
	rateLimiterCfg.RunPerMin = cfg.RateLimitRun
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           m,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		MonitorService: monitorService,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if scheduler != nil {
		// 放棄されたrunning実行の回収ジョブ。起動時に1回＋日次。
		reconcileJob := worker.NewReconcileJob(db, cfg.ReconcileGrace, slog.Default())
		g.Go(func() error {
			reconcileJob.Start(gctx)
			return nil
		})

		// アクティブなモニターをスケジュールに載せる
		if err := scheduler.InitializeSchedules(gctx); err != nil {
			slog.Error("failed to initialize schedules", slog.String("error", err.Error()))
		} else {
			slog.Info("schedules initialized", slog.Int("count", scheduler.ScheduledCount()))
		}
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
