package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/product"
	"github.com/hitoshi/tarkam/internal/serialize"
	"github.com/hitoshi/tarkam/internal/view"
)

// PageRenderer はHTMLページの描画インターフェース。view.Rendererが実装する。
type PageRenderer interface {
	Main(w io.Writer, page view.Page) error
	ProductList(w io.Writer, page view.Page, products []*model.Product, viewerID string, ownedOnly bool) error
	ProductDetail(w io.Writer, page view.Page, p *model.Product, viewerID string) error
	Login(w io.Writer, page view.Page, next string) error
	Register(w io.Writer, page view.Page) error
	NotFound(w io.Writer, page view.Page) error
}

// ProductService は商品ハンドラーが必要とするサービスインターフェース。
type ProductService interface {
	Create(ctx context.Context, ownerID string, in product.Input) (*model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, scope model.ProductScope) ([]*model.Product, error)
	Update(ctx context.Context, id string, in product.Input) error
	Delete(ctx context.Context, id string) error
}

// filterAll は全商品を表す一覧フィルター値。
const filterAll = "all"

// PageHandler はログインユーザー向けのページを提供する。
// APIモードのリクエストには同じ内容をJSONで返す。
type PageHandler struct {
	products  ProductService
	pages     PageRenderer
	lastLogin *LastLoginStore
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(products ProductService, pages PageRenderer, lastLogin *LastLoginStore) *PageHandler {
	return &PageHandler{
		products:  products,
		pages:     pages,
		lastLogin: lastLogin,
	}
}

// Main はメインページを表示する。
// GET /
func (h *PageHandler) Main(w http.ResponseWriter, r *http.Request, session *model.Session) {
	page := h.page(r, session, "Home")
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{
			"username":   page.Username,
			"last_login": page.LastLogin,
		})
		return
	}

	renderPage(w, http.StatusOK, func(buf io.Writer) error {
		return h.pages.Main(buf, page)
	})
}

// ProductList は商品一覧を表示する。
// filterがall（既定）以外の場合はログインユーザーの商品のみを表示する。
// GET /products/?filter=
func (h *PageHandler) ProductList(w http.ResponseWriter, r *http.Request, session *model.Session) {
	filter := r.URL.Query().Get("filter")
	scope := model.ScopeAll
	ownedOnly := filter != "" && filter != filterAll
	if ownedOnly {
		scope = model.ScopeOwnedBy(session.UserID)
	}

	products, err := h.products.List(r.Context(), scope)
	if err != nil {
		slog.Error("failed to list products", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, serialize.ProductsJSON(products))
		return
	}

	renderPage(w, http.StatusOK, func(buf io.Writer) error {
		return h.pages.ProductList(buf, h.page(r, session, "Products"), products, session.UserID, ownedOnly)
	})
}

// ProductDetail は商品詳細を表示する。存在しない商品は404。
// GET /products/{id}/
func (h *PageHandler) ProductDetail(w http.ResponseWriter, r *http.Request, session *model.Session) {
	id := chi.URLParam(r, "id")

	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		if isNotFound(err) && !middleware.WantsJSON(r) {
			h.renderNotFound(w, r, session)
			return
		}
		writeServiceError(w, err, "failed to get product")
		return
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, serialize.ProductDetailJSON(p))
		return
	}

	renderPage(w, http.StatusOK, func(buf io.Writer) error {
		return h.pages.ProductDetail(buf, h.page(r, session, p.Name), p, session.UserID)
	})
}

// NotFound は未定義のパスに対する404を返す。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request, session *model.Session) {
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}
	h.renderNotFound(w, r, session)
}

func (h *PageHandler) renderNotFound(w http.ResponseWriter, r *http.Request, session *model.Session) {
	renderPage(w, http.StatusNotFound, func(buf io.Writer) error {
		return h.pages.NotFound(buf, h.page(r, session, "Not Found"))
	})
}

// page は共通のページ情報を組み立てる。
func (h *PageHandler) page(r *http.Request, session *model.Session, title string) view.Page {
	page := view.Page{Title: title}
	if session != nil {
		page.Username = session.Username
		page.LastLogin = h.lastLogin.Value(r)
	}
	return page
}

// renderPage はページをバッファに描画してから書き出す。
// 描画に失敗した場合は途中までのHTMLを送らずに500を返す。
func renderPage(w http.ResponseWriter, status int, render func(buf io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		slog.Error("failed to render page", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
