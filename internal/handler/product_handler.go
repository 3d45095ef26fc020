package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/product"
)

// ProductHandler は画面から呼ばれる商品の作成・編集・削除を処理する。
type ProductHandler struct {
	products ProductService
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// Create はログインユーザーを所有者として商品を作成する。
// POST /create-product-ajax/
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request, session *model.Session) {
	fields, err := readFields(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	p, err := h.products.Create(r.Context(), session.UserID, fields.productInput(product.CategoryStrict))
	if err != nil {
		writeServiceError(w, err, "failed to create product")
		return
	}

	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("user_id", session.UserID),
	)
	writeText(w, http.StatusCreated, "CREATED")
}

// Edit は所有者による商品の更新を処理する。
// 検証エラーは400、想定外のエラーはエラー内容をそのまま500で返す。
// POST /edit-product-ajax/{id}
func (h *ProductHandler) Edit(w http.ResponseWriter, r *http.Request, session *model.Session) {
	id := chi.URLParam(r, "id")
	if !h.requireOwner(w, r, session, id) {
		return
	}

	fields, err := readFields(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if err := h.products.Update(r.Context(), id, fields.productInput(product.CategoryStrict)); err != nil {
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verr):
			writeValidationError(w, verr)
		case isNotFound(err):
			writeServiceError(w, err, "failed to update product")
		default:
			slog.Error("failed to update product",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
			writeText(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeText(w, http.StatusOK, "OK")
}

// Delete は所有者による商品の削除を処理する。
// POST /delete-product-ajax/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request, session *model.Session) {
	id := chi.URLParam(r, "id")
	if !h.requireOwner(w, r, session, id) {
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "failed to delete product")
		return
	}

	slog.Info("product deleted",
		slog.String("product_id", id),
		slog.String("user_id", session.UserID),
	)
	writeText(w, http.StatusOK, "OK")
}

// requireOwner は対象商品を取得し、ログインユーザーが所有者であることを確認する。
// 存在しない場合は404、所有者でない場合は403を書き込んでfalseを返す。
func (h *ProductHandler) requireOwner(w http.ResponseWriter, r *http.Request, session *model.Session, id string) bool {
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to get product")
		return false
	}

	if !p.IsOwnedBy(session.UserID) {
		slog.Warn("product ownership mismatch",
			slog.String("product_id", id),
			slog.String("user_id", session.UserID),
		)
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError(id))
		return false
	}

	return true
}
