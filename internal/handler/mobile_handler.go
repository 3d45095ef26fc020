package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/product"
	"github.com/hitoshi/tarkam/internal/security"
	"github.com/hitoshi/tarkam/internal/serialize"
)

// mobileStatus はモバイルクライアント向けの簡易ステータスレスポンス。
type mobileStatus struct {
	Status string `json:"status"`
}

var (
	mobileStatusSuccess = mobileStatus{Status: "success"}
	mobileStatusError   = mobileStatus{Status: "error"}
)

// MobileHandler はモバイルクライアント向けの商品作成・一覧を提供する。
type MobileHandler struct {
	products  ProductService
	sanitizer security.TextSanitizerService
}

// NewMobileHandler はMobileHandlerを生成する。
func NewMobileHandler(products ProductService, sanitizer security.TextSanitizerService) *MobileHandler {
	return &MobileHandler{
		products:  products,
		sanitizer: sanitizer,
	}
}

// CreateProduct はJSONボディから商品を作成する。
// 名前・説明はマークアップを除去し、不明なカテゴリはotherとして扱う。
// サムネイルはそのまま渡し、product.ServiceのURL検証に任せる。
// POST以外と未認証のリクエストは401。
// POST /create-flutter/
func (h *MobileHandler) CreateProduct(w http.ResponseWriter, r *http.Request, session *model.Session) {
	if r.Method != http.MethodPost || session == nil {
		writeJSON(w, http.StatusUnauthorized, mobileStatusError)
		return
	}

	fields, err := readJSONFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, mobileStatusError)
		return
	}

	in := fields.productInput(product.CategoryFallback)
	in.Name = h.sanitizer.StripMarkup(in.Name)
	in.Description = h.sanitizer.StripMarkup(in.Description)

	p, err := h.products.Create(r.Context(), session.UserID, in)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		slog.Error("failed to create product", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, mobileStatusError)
		return
	}

	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("user_id", session.UserID),
		slog.String("client", "mobile"),
	)
	writeJSON(w, http.StatusOK, mobileStatusSuccess)
}

// ListProducts は商品一覧をJSON配列で返す。
// filterがall（既定）以外の場合はリクエスト者の商品のみに絞り込み、未認証では空になる。
// GET以外のリクエストは401。
// GET /get-flutter/?filter=
func (h *MobileHandler) ListProducts(w http.ResponseWriter, r *http.Request, session *model.Session) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusUnauthorized, mobileStatusError)
		return
	}

	products, err := h.products.List(r.Context(), model.ScopeAll)
	if err != nil {
		slog.Error("failed to list products", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, mobileStatusError)
		return
	}

	filter := r.URL.Query().Get("filter")
	if filter != "" && filter != filterAll {
		var viewerID string
		if session != nil {
			viewerID = session.UserID
		}
		owned := make([]*model.Product, 0, len(products))
		for _, p := range products {
			if viewerID != "" && p.IsOwnedBy(viewerID) {
				owned = append(owned, p)
			}
		}
		products = owned
	}

	writeJSON(w, http.StatusOK, serialize.ProductsJSON(products))
}
