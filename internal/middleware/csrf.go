package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tarkam/internal/model"
)

const (
	// CSRFCookieName はダブルサブミット用トークンのCookie名。JavaScriptから読むためHttpOnlyにしない。
	CSRFCookieName = "csrf_token"
	// CSRFHeaderName はfetchから送るトークンのヘッダー名。
	CSRFHeaderName = "X-CSRF-Token"
	// CSRFFormField はHTMLフォームから送るトークンのフィールド名。
	CSRFFormField = "csrfmiddlewaretoken"

	csrfCookieMaxAge = 24 * 60 * 60
	csrfTokenBytes   = 32
)

var (
	errCSRFNoCookie = errors.New("missing cookie token")
	errCSRFNoToken  = errors.New("missing request token")
	errCSRFMismatch = errors.New("token mismatch")
)

// CSRFConfig はトークンCookieの属性。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダブルサブミット方式のCSRF検証ミドルウェアを返す。
// GET/HEAD/OPTIONSは検証せず、Cookieが無ければ発行だけ行う。
// それ以外はCookieとリクエスト側トークン（ヘッダー優先、次にフォーム値）の一致を要求する。
func NewCSRFMiddleware(cfg CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := r.Cookie(CSRFCookieName); err != nil {
					if _, err := issueCSRFToken(w, cfg); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := verifyCSRF(r); err != nil {
				slog.Warn("CSRF validation failed",
					slog.String("reason", err.Error()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     model.ErrCodeForbidden,
					Message:  "CSRF token validation failed",
					Category: "auth",
					Action:   "ページを再読み込みしてから再度お試しください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はGET /csrf-token/ のハンドラーを返す。
// 発行済みのトークンがあればそれを返す。
func NewCSRFTokenHandler(cfg CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := existingCSRFToken(r)
		if token == "" {
			var err error
			if token, err = issueCSRFToken(w, cfg); err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{token})
	})
}

func existingCSRFToken(r *http.Request) string {
	if c, err := r.Cookie(CSRFCookieName); err == nil {
		return c.Value
	}
	return ""
}

func verifyCSRF(r *http.Request) error {
	expected := existingCSRFToken(r)
	if expected == "" {
		return errCSRFNoCookie
	}

	got := r.Header.Get(CSRFHeaderName)
	if got == "" {
		got = r.PostFormValue(CSRFFormField)
	}
	if got == "" {
		return errCSRFNoToken
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// issueCSRFToken は新しいトークンを生成してCookieに設定する。
func issueCSRFToken(w http.ResponseWriter, cfg CSRFConfig) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}
