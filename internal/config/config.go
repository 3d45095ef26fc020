// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config は起動時に1回だけ読み込む設定値。読み込み後は変更しない。
type Config struct {
	AppName  string // ページタイトルとログのservice属性
	LogLevel string

	DatabaseURL string

	SessionSecret          string
	SessionMaxAge          int // 秒
	SessionCleanupInterval time.Duration

	ProxyTimeout time.Duration
	ProxyMaxSize int64

	// 1分あたりの許容回数
	RateLimitGeneral int
	RateLimitAuth    int

	ServerPort        string
	WorkerMetricsPort string // 空の場合はworkerのメトリクスを公開しない
	BaseURL           string

	CookieSecure bool
	CookieDomain string

	CORSAllowedOrigin string // カンマ区切り

	TrustProxyHeaders bool // X-Forwarded-For/X-Real-IPを信頼するか
}

// requiredVars は未設定だと起動できない環境変数。
var requiredVars = []string{"DATABASE_URL", "SESSION_SECRET", "BASE_URL"}

// Load は環境変数からConfigを組み立てる。
// 必須変数の欠落はまとめて1つのエラーとして報告する。
// 任意項目の値が解釈できない場合は既定値を使う。
func Load() (*Config, error) {
	var missing []string
	for _, key := range requiredVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}

	baseURL := os.Getenv("BASE_URL")
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute URL: %q", baseURL)
	}

	return &Config{
		AppName:  envOr("APP_NAME", "Tarkam Store", parseString),
		LogLevel: envOr("LOG_LEVEL", "info", parseString),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SessionSecret:          os.Getenv("SESSION_SECRET"),
		SessionMaxAge:          envOr("SESSION_MAX_AGE", 1209600, strconv.Atoi),
		SessionCleanupInterval: envOr("SESSION_CLEANUP_INTERVAL", time.Hour, time.ParseDuration),

		ProxyTimeout: envOr("PROXY_TIMEOUT", 10*time.Second, time.ParseDuration),
		ProxyMaxSize: envOr("PROXY_MAX_SIZE", int64(5242880), parseInt64),

		RateLimitGeneral: envOr("RATE_LIMIT_GENERAL", 120, strconv.Atoi),
		RateLimitAuth:    envOr("RATE_LIMIT_AUTH", 10, strconv.Atoi),

		ServerPort:        envOr("SERVER_PORT", "8080", parseString),
		WorkerMetricsPort: envOr("WORKER_METRICS_PORT", "9091", parseString),
		BaseURL:           baseURL,

		CookieSecure: envOr("COOKIE_SECURE", strings.HasPrefix(baseURL, "https://"), strconv.ParseBool),
		CookieDomain: envOr("COOKIE_DOMAIN", "", parseString),

		CORSAllowedOrigin: envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000", parseString),
		TrustProxyHeaders: envOr("TRUST_PROXY_HEADERS", false, strconv.ParseBool),
	}, nil
}

// envOr はkeyの値をparseで変換する。未設定または変換失敗ならdefを返す。
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
