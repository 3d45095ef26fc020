package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/serialize"
)

// FeedHandler は認証不要の商品フィード（XML/JSON）を提供する。
type FeedHandler struct {
	products ProductService
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(products ProductService) *FeedHandler {
	return &FeedHandler{products: products}
}

// XML は全商品をXMLで返す。
// GET /xml/
func (h *FeedHandler) XML(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), model.ScopeAll)
	if err != nil {
		slog.Error("failed to list products", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeXML(w, products)
}

// JSON は全商品をJSONで返す。
// GET /json/
func (h *FeedHandler) JSON(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), model.ScopeAll)
	if err != nil {
		slog.Error("failed to list products", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, serialize.ProductsJSON(products))
}

// XMLByID は指定商品を1件のみ含むXMLを返す。存在しない場合は空ボディの404。
// GET /xml/{id}/
func (h *FeedHandler) XMLByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if isNotFound(err) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		slog.Error("failed to get product", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeXML(w, []*model.Product{p})
}

// JSONByID は指定商品をJSONで返す。存在しない場合は{"detail": "Not Found"}の404。
// GET /json/{id}/
func (h *FeedHandler) JSONByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if isNotFound(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
			return
		}
		slog.Error("failed to get product", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, serialize.ProductDetailJSON(p))
}

func writeXML(w http.ResponseWriter, products []*model.Product) {
	body, err := serialize.ProductsXML(products)
	if err != nil {
		slog.Error("failed to encode products as XML", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
