package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tarkam/internal/middleware"
	"github.com/hitoshi/tarkam/internal/model"
	"github.com/hitoshi/tarkam/internal/view"
)

// AuthService は認証ハンドラーが必要とするサービスインターフェース。
type AuthService interface {
	Register(ctx context.Context, username, password, confirm string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string)
}

// AuthHandler はユーザー登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service   AuthService
	pages     PageRenderer
	lastLogin *LastLoginStore
	cookies   CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthService, pages PageRenderer, lastLogin *LastLoginStore, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		pages:     pages,
		lastLogin: lastLogin,
		cookies:   cookies,
	}
}

// RegisterPage は登録ページを表示する。
// GET /register/
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, func(buf io.Writer) error {
		return h.pages.Register(buf, view.Page{Title: "Register"})
	})
}

// Register はユーザー登録を処理する。
// POST /register/
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if _, err := h.service.Register(r.Context(), fields["username"], fields["password"], fields["confirm_password"]); err != nil {
		writeServiceError(w, err, "failed to register user")
		return
	}

	writeText(w, http.StatusCreated, "CREATED")
}

// LoginPage はログインページを表示する。
// GET /login/?next=
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, func(buf io.Writer) error {
		return h.pages.Login(buf, view.Page{Title: "Login"}, r.URL.Query().Get("next"))
	})
}

// Login は資格情報を検証し、セッションCookieと最終ログイン時刻を発行する。
// POST /login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	session, err := h.service.Login(r.Context(), fields["username"], fields["password"])
	if err != nil {
		writeServiceError(w, err, "failed to login")
		return
	}

	h.startSession(w, r, session)
	writeText(w, http.StatusOK, "OK")
}

// Logout はセッションを破棄し、関連するCookieを削除する。
// 未ログインでも成功を返す。
// POST /logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	writeText(w, http.StatusOK, "OK")
}

// startSession はセッションCookieと最終ログイン時刻Cookieを設定する。
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   h.cookies.MaxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if err := h.lastLogin.Mark(w, r); err != nil {
		slog.Warn("failed to set last_login cookie", slog.String("error", err.Error()))
	}
}

// endSession はセッションを破棄し、セッションCookieと最終ログイン時刻Cookieを削除する。
func (h *AuthHandler) endSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		h.service.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if err := h.lastLogin.Clear(w, r); err != nil {
		slog.Warn("failed to clear last_login cookie", slog.String("error", err.Error()))
	}
}

// mobileResponse はモバイルクライアント向け認証エンドポイントのレスポンス。
// statusは成功時に真偽値または"success"を取る。
type mobileResponse struct {
	Username string `json:"username,omitempty"`
	Status   any    `json:"status"`
	Message  string `json:"message"`
}

const (
	msgMobileLoginOK       = "Login successful!"
	msgMobileLoginFailed   = "Login failed, please check your username or password."
	msgMobileRegisterOK    = "User created successfully!"
	msgMobileLogoutOK      = "Logout successful!"
	msgMobileLogoutFailed  = "Logout failed."
	msgMobileInvalidMethod = "Invalid request method."
	msgMobileInternalError = "Internal server error."
)

// MobileLogin はモバイルクライアントのログインを処理する。
// POST /auth/login/
func (h *AuthHandler) MobileLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, mobileResponse{Status: false, Message: msgMobileInvalidMethod})
		return
	}

	fields, err := readMobileFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, mobileResponse{Status: false, Message: err.Error()})
		return
	}

	session, err := h.service.Login(r.Context(), fields["username"], fields["password"])
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnauthorized, mobileResponse{Status: false, Message: msgMobileLoginFailed})
			return
		}
		slog.Error("failed to login", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, mobileResponse{Status: false, Message: msgMobileInternalError})
		return
	}

	h.startSession(w, r, session)
	writeJSON(w, http.StatusOK, mobileResponse{Username: session.Username, Status: true, Message: msgMobileLoginOK})
}

// MobileRegister はモバイルクライアントのユーザー登録を処理する。
// POST /auth/register/
func (h *AuthHandler) MobileRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, mobileResponse{Status: false, Message: msgMobileInvalidMethod})
		return
	}

	fields, err := readMobileFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, mobileResponse{Status: false, Message: err.Error()})
		return
	}

	user, err := h.service.Register(r.Context(), fields["username"], fields["password1"], fields["password2"])
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, mobileResponse{Status: false, Message: firstValidationMessage(verr)})
			return
		}
		slog.Error("failed to register user", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, mobileResponse{Status: false, Message: msgMobileInternalError})
		return
	}

	writeJSON(w, http.StatusOK, mobileResponse{Username: user.Username, Status: "success", Message: msgMobileRegisterOK})
}

// MobileLogout はモバイルクライアントのログアウトを処理する。
// POST /auth/logout/
func (h *AuthHandler) MobileLogout(w http.ResponseWriter, r *http.Request, session *model.Session) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, mobileResponse{Status: false, Message: msgMobileInvalidMethod})
		return
	}
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, mobileResponse{Status: false, Message: msgMobileLogoutFailed})
		return
	}

	h.endSession(w, r)
	writeJSON(w, http.StatusOK, mobileResponse{Username: session.Username, Status: true, Message: msgMobileLogoutOK})
}

// readMobileFields はモバイルクライアントのボディを読み取る。
// Content-Typeに関わらずJSONを優先し、フォーム送信にも対応する。
func readMobileFields(r *http.Request) (requestFields, error) {
	if middleware.IsJSONBody(r) || r.Header.Get("Content-Type") == "" {
		return readJSONFields(r)
	}
	return readFields(r)
}

// firstValidationMessage はクライアントに表示する最初の検証エラーを返す。
func firstValidationMessage(verr *model.ValidationError) string {
	if len(verr.NonFieldErrors) > 0 {
		return verr.NonFieldErrors[0]
	}
	if len(verr.FieldErrors) > 0 {
		fe := verr.FieldErrors[0]
		return fe.Field + ": " + fe.Message
	}
	return verr.Error()
}
