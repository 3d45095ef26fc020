package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/product"
	"github.com/hitoshi/tarkam/internal/proxy"
	"github.com/hitoshi/tarkam/internal/view"
)

// --- モック定義 ---

// mockAuthService はAuthServiceのモック実装。
type mockAuthService struct {
	registerFn func(ctx context.Context, username, password, confirm string) (*model.User, error)
	loginFn    func(ctx context.Context, username, password string) (*model.Session, error)
	loggedOut  []string
}

func (m *mockAuthService) Register(ctx context.Context, username, password, confirm string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password, confirm)
	}
	return &model.User{ID: "user-new", Username: username}, nil
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) {
	m.loggedOut = append(m.loggedOut, sessionID)
}

// mockProductService はProductServiceのモック実装。
type mockProductService struct {
	createFn func(ctx context.Context, ownerID string, in product.Input) (*model.Product, error)
	getFn    func(ctx context.Context, id string) (*model.Product, error)
	listFn   func(ctx context.Context, scope model.ProductScope) ([]*model.Product, error)
	updateFn func(ctx context.Context, id string, in product.Input) error
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockProductService) Create(ctx context.Context, ownerID string, in product.Input) (*model.Product, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, in)
	}
	return &model.Product{ID: "created"}, nil
}

func (m *mockProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewProductNotFoundError(id)
}

func (m *mockProductService) List(ctx context.Context, scope model.ProductScope) ([]*model.Product, error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope)
	}
	return []*model.Product{}, nil
}

func (m *mockProductService) Update(ctx context.Context, id string, in product.Input) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return nil
}

func (m *mockProductService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockFetcher はImageFetcherのモック実装。
type mockFetcher struct {
	fetchFn func(ctx context.Context, rawURL string) (*proxy.Image, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (*proxy.Image, error) {
	return m.fetchFn(ctx, rawURL)
}

// mockAuthenticator はセッションIDとセッションの対応表で認証するモック。
type mockAuthenticator struct {
	sessions map[string]*model.Session
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

// --- テストデータ ---

const (
	aliceID   = "11111111-1111-4111-8111-111111111111"
	bobID     = "33333333-3333-4333-8333-333333333333"
	productID = "22222222-2222-4222-8222-222222222222"
)

func strPtr(s string) *string { return &s }

func aliceSession() *model.Session {
	return &model.Session{
		ID:        "alice-session",
		UserID:    aliceID,
		Username:  "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func bobSession() *model.Session {
	return &model.Session{
		ID:        "bob-session",
		UserID:    bobID,
		Username:  "bob",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// aliceBall はaliceが所有する商品を返す。
func aliceBall() *model.Product {
	return &model.Product{
		ID:            productID,
		Name:          "Ball",
		Price:         100,
		Description:   "d",
		Category:      model.CategoryBalls,
		OwnerID:       strPtr(aliceID),
		OwnerUsername: strPtr("alice"),
	}
}

// --- テストヘルパー ---

func newTestRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	r, err := view.NewRenderer("Tarkam Store")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func newTestLastLogin() *LastLoginStore {
	return NewLastLoginStore([]byte("test-secret-test-secret-test-sec"), CookieConfig{MaxAge: 3600})
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// decodeJSON はレスポンスボディをvにデコードするヘルパー。
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// apiRequest はAPIモード（JSON応答）のリクエストを生成する。
func apiRequest(req *http.Request) *http.Request {
	req.Header.Set("Accept", "application/json")
	return req
}

var _ middleware.SessionAuthenticator = (*mockAuthenticator)(nil)
