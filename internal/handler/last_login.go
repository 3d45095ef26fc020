package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	lastLoginCookieName = "last_login"
	lastLoginValueKey   = "at"
	lastLoginLayout     = "2006-01-02 15:04:05"

	// LastLoginNever は最終ログイン時刻が記録されていない場合の表示値。
	LastLoginNever = "Never"
)

// CookieConfig はハンドラーが発行するCookieの共通設定。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// LastLoginStore は最終ログイン時刻を署名付きCookieで保持する。
// 表示専用であり認可には使用しない。
type LastLoginStore struct {
	store *sessions.CookieStore
	now   func() time.Time
}

// NewLastLoginStore はsecretで署名するLastLoginStoreを生成する。
func NewLastLoginStore(secret []byte, config CookieConfig) *LastLoginStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   config.Domain,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(config.MaxAge)

	return &LastLoginStore{store: store, now: time.Now}
}

// Mark は現在時刻を最終ログイン時刻として書き込む。
func (s *LastLoginStore) Mark(w http.ResponseWriter, r *http.Request) error {
	// 署名の検証に失敗した場合も新しいセッションが返るため、エラーは無視して上書きする
	sess, _ := s.store.Get(r, lastLoginCookieName)
	sess.Values[lastLoginValueKey] = s.now().Format(lastLoginLayout)
	return sess.Save(r, w)
}

// Value は表示用の最終ログイン時刻を返す。未設定や改ざんされたCookieではLastLoginNeverを返す。
func (s *LastLoginStore) Value(r *http.Request) string {
	sess, err := s.store.Get(r, lastLoginCookieName)
	if err != nil {
		slog.Debug("invalid last_login cookie", slog.String("error", err.Error()))
		return LastLoginNever
	}
	v, ok := sess.Values[lastLoginValueKey].(string)
	if !ok || v == "" {
		return LastLoginNever
	}
	return v
}

// Clear は最終ログイン時刻のCookieを削除する。
func (s *LastLoginStore) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, lastLoginCookieName)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
