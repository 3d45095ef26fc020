// Package proxy はリモート画像を取得して中継する画像プロキシを提供する。
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hitoshi/tarkam/internal/security"
)

// デフォルト値。
const (
	DefaultTimeout = 10 * time.Second
	DefaultMaxSize = 5 << 20 // 5MiB
)

// 失敗原因のメトリクスラベル。
const (
	ReasonBlocked  = "blocked"
	ReasonTimeout  = "timeout"
	ReasonNetwork  = "network"
	ReasonStatus   = "status"
	ReasonTooLarge = "too_large"
	ReasonRead     = "read"
)

// FetchError は上流からの画像取得に失敗したことを表す。
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

// Error はerrorインターフェースを実装する。上流の失敗内容をそのまま表す。
func (e *FetchError) Error() string {
	return e.Err.Error()
}

// Unwrap は元のエラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Image は取得した画像データ。
type Image struct {
	Body        []byte
	ContentType string
}

// Recorder は画像取得のメトリクス記録先。
type Recorder interface {
	RecordProxyFetchSuccess()
	RecordProxyFetchFailure(reason string)
	RecordProxyLatency(duration time.Duration)
}

// Config は画像プロキシの設定。
type Config struct {
	Timeout time.Duration
	MaxSize int64
}

// ImageFetcher はSSRF防止付きクライアントで画像を取得する。
type ImageFetcher struct {
	guard   security.SSRFGuardService
	client  *http.Client
	maxSize int64
	metrics Recorder
}

// NewImageFetcher はImageFetcherを生成する。ゼロ値の設定項目はデフォルト値で補う。metricsはnil可。
func NewImageFetcher(guard security.SSRFGuardService, cfg Config, metrics Recorder) *ImageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &ImageFetcher{
		guard:   guard,
		client:  guard.NewSafeClient(cfg.Timeout),
		maxSize: cfg.MaxSize,
		metrics: metrics,
	}
}

// Fetch は指定URLの内容を取得する。
// 2xx以外の応答、タイムアウト、サイズ超過はすべて*FetchErrorとして返す。
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	start := time.Now()
	img, err := f.fetch(ctx, rawURL)
	f.observe(time.Since(start))

	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			f.recordFailure(fe.Reason)
			slog.Warn("image proxy fetch failed",
				slog.String("url", rawURL),
				slog.String("reason", fe.Reason),
				slog.String("error", fe.Error()),
			)
		}
		return nil, err
	}

	f.recordSuccess()
	return img, nil
}

func (f *ImageFetcher) fetch(ctx context.Context, rawURL string) (*Image, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ReasonBlocked, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: ReasonBlocked, Err: err}
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			URL:    rawURL,
			Reason: ReasonStatus,
			Err:    fmt.Errorf("upstream returned status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: classifyTransportError(err), Err: err}
	}
	if int64(len(body)) > f.maxSize {
		return nil, &FetchError{
			URL:    rawURL,
			Reason: ReasonTooLarge,
			Err:    fmt.Errorf("response exceeds %d bytes", f.maxSize),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	return &Image{Body: body, ContentType: contentType}, nil
}

// classifyTransportError は通信エラーをタイムアウトとそれ以外に分類する。
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetwork
}

func (f *ImageFetcher) observe(d time.Duration) {
	if f.metrics != nil {
		f.metrics.RecordProxyLatency(d)
	}
}

func (f *ImageFetcher) recordSuccess() {
	if f.metrics != nil {
		f.metrics.RecordProxyFetchSuccess()
	}
}

func (f *ImageFetcher) recordFailure(reason string) {
	if f.metrics != nil {
		f.metrics.RecordProxyFetchFailure(reason)
	}
}
