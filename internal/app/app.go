package app

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/tarkam/internal/auth"
	"github.com/hitoshi/tarkam/internal/config"
	"github.com/hitoshi/tarkam/internal/database"
	"github.com/hitoshi/tarkam/internal/handler"
	"github.com/hitoshi/tarkam/internal/logger"
	"github.com/hitoshi/tarkam/internal/metrics"
	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/product"
	"github.com/hitoshi/tarkam/internal/proxy"
	"github.com/hitoshi/tarkam/internal/repository"
	"github.com/hitoshi/tarkam/internal/security"
	"github.com/hitoshi/tarkam/internal/view"
	"github.com/hitoshi/tarkam/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	shutdownTimeout = 30 * time.Second
	dbPingTimeout   = 5 * time.Second
)

// Init は設定を読み込み、デフォルトロガーをJSON出力に設定する。
// wがnilの場合は標準出力に書く。設定読み込みの失敗もJSONで記録できるよう、先に仮のロガーを立てる。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w, logger.Options{Level: logger.ParseLevel(os.Getenv("LOG_LEVEL"))})

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.Options{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: cfg.AppName,
	})

	return cfg, nil
}

// Run はargs（os.Args[1:]）の先頭をサブコマンドとして解釈し、実行する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if !cmd.NeedsConfig() {
		return runHealthcheck(cmp.Or(os.Getenv("SERVER_PORT"), "8080"))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("tarkam starting",
		slog.String("command", string(cmd)),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(db, dbPingTimeout); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// server はHTTPサーバーと、停止時に解放するリソースをまとめたもの。
type server struct {
	httpServer  *http.Server
	rateLimiter *middleware.RateLimiter
}

// newServer はリポジトリからルーターまでを組み立てたHTTPサーバーを返す。
// アプリのメトリクスはregに登録され、/metricsで公開される。
func newServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (*server, error) {
	collector := metrics.NewCollector(reg)

	authService := auth.NewService(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresSessionRepo(db),
		collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	productService := product.NewService(repository.NewPostgresProductRepo(db), collector)
	imageFetcher := proxy.NewImageFetcher(security.NewSSRFGuard(), proxy.Config{
		Timeout: cfg.ProxyTimeout,
		MaxSize: cfg.ProxyMaxSize,
	}, collector)

	renderer, err := view.NewRenderer(cfg.AppName)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	cookies := handler.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionMaxAge,
	}
	lastLogin := handler.NewLastLoginStore([]byte(cfg.SessionSecret), cookies)

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		Gatherer:          reg,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Cookies:           cookies,
		TrustProxyHeaders: cfg.TrustProxyHeaders,

		AuthService:  authService,
		Products:     productService,
		Sanitizer:    security.NewTextSanitizer(),
		ImageFetcher: imageFetcher,
		Health:       db,

		Pages:     renderer,
		LastLogin: lastLogin,
	})

	return &server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.ProxyTimeout + 15*time.Second,
			IdleTimeout:       time.Minute,
		},
		rateLimiter: rateLimiter,
	}, nil
}

// runServe はWebサーバーを起動し、SIGINT/SIGTERMで処理中のリクエストを待って停止する。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "tarkam"),
	)

	srv, err := newServer(cfg, db, reg)
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := listenUntilDone(ctx, srv.httpServer, shutdownTimeout); err != nil {
		return err
	}
	slog.Info("web server stopped")
	return nil
}

// listenUntilDone はctxが終了するまでsrvを動かし、終了後はtimeout以内にシャットダウンする。
// Listenに失敗した場合はその時点でエラーを返す。
func listenUntilDone(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	listenErr := make(chan error, 1)
	go func() {
		slog.Info("http listener starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err, ok := <-listenErr:
		if ok {
			return fmt.Errorf("listen on %s failed: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("http listener shutting down", slog.String("addr", srv.Addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown of %s failed: %w", srv.Addr, err)
	}
	return nil
}

// runWorker は期限切れセッションの定期削除をシグナル受信まで続ける。
// WorkerMetricsPortが空でなければ、そのポートで/metricsを公開する。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	var metricsDone chan struct{}
	if cfg.WorkerMetricsPort != "" {
		metricsDone = make(chan struct{})
		metricsServer := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			defer close(metricsDone)
			// メトリクスを公開できなくてもクリーンアップは続ける
			if err := listenUntilDone(ctx, metricsServer, 5*time.Second); err != nil {
				slog.Error("worker metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
		slog.String("metrics_port", cfg.WorkerMetricsPort),
	)

	cleanup.NewCleanupJob(db, slog.Default(), collector).Start(ctx, cfg.SessionCleanupInterval)

	if metricsDone != nil {
		<-metricsDone
	}
	slog.Info("worker stopped")
	return nil
}

// runMigrate は埋め込みSQLのうち未適用のものを適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("applying schema migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("schema migrations finished",
		slog.Uint64("schema_version", uint64(status.Version)),
		slog.Bool("applied", status.Applied),
	)
	return nil
}

// runHealthcheck はローカルの/healthを叩き、200以外なら失敗とする。
// シェルのないdistrolessイメージのHEALTHCHECKから呼ばれる。
func runHealthcheck(port string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://localhost:" + port + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
