package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLastLoginStore_RoundTrip(t *testing.T) {
	store := newTestLastLogin()
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	w := httptest.NewRecorder()
	if err := store.Mark(w, httptest.NewRequest(http.MethodPost, "/login/", nil)); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	cookie := findCookie(w, lastLoginCookieName)
	if cookie == nil {
		t.Fatal("cookie not written")
	}
	if !cookie.HttpOnly {
		t.Error("last_login cookie should be HttpOnly")
	}
	if cookie.Value == "2026-10-16 09:30:00" {
		t.Error("cookie value should be signed, not plain text")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if got := store.Value(req); got != "2026-10-16 09:30:00" {
		t.Errorf("Value = %q", got)
	}
}

func TestLastLoginStore_MissingOrTampered_ReturnsNever(t *testing.T) {
	store := newTestLastLogin()

	if got := store.Value(httptest.NewRequest(http.MethodGet, "/", nil)); got != LastLoginNever {
		t.Errorf("missing cookie: Value = %q, want %q", got, LastLoginNever)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: lastLoginCookieName, Value: "forged"})
	if got := store.Value(req); got != LastLoginNever {
		t.Errorf("tampered cookie: Value = %q, want %q", got, LastLoginNever)
	}
}

// TestLastLoginStore_OtherSecret_Rejected は別の鍵で署名されたCookieを受け付けないことを検証する。
func TestLastLoginStore_OtherSecret_Rejected(t *testing.T) {
	other := NewLastLoginStore([]byte("another-secret-another-secret-12"), CookieConfig{MaxAge: 3600})
	w := httptest.NewRecorder()
	if err := other.Mark(w, httptest.NewRequest(http.MethodPost, "/login/", nil)); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(findCookie(w, lastLoginCookieName))
	if got := newTestLastLogin().Value(req); got != LastLoginNever {
		t.Errorf("Value = %q, want %q", got, LastLoginNever)
	}
}

func TestLastLoginStore_Clear_ExpiresCookie(t *testing.T) {
	store := newTestLastLogin()
	w := httptest.NewRecorder()
	if err := store.Clear(w, httptest.NewRequest(http.MethodPost, "/logout/", nil)); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	c := findCookie(w, lastLoginCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("cookie should be expired, got %+v", c)
	}
}
