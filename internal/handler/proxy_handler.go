package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/tarkam/internal/proxy"
)

// ImageFetcher は画像プロキシが使う取得インターフェース。proxy.ImageFetcherが実装する。
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*proxy.Image, error)
}

// ProxyHandler は外部画像を中継する。
type ProxyHandler struct {
	fetcher ImageFetcher
}

// NewProxyHandler はProxyHandlerを生成する。
func NewProxyHandler(fetcher ImageFetcher) *ProxyHandler {
	return &ProxyHandler{fetcher: fetcher}
}

// Image はurlパラメータの画像を取得し、本文とContent-Typeをそのまま返す。
// GET /proxy-image/?url=
func (h *ProxyHandler) Image(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeText(w, http.StatusBadRequest, "No URL provided")
		return
	}

	img, err := h.fetcher.Fetch(r.Context(), rawURL)
	if err != nil {
		writeText(w, http.StatusInternalServerError, "Error fetching image: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(img.Body)
}
