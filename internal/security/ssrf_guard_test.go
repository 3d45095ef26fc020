package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"
)

func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 10*time.Second {
		t.Errorf("expected timeout %v, got %v", 10*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// TestNewSafeClientBlocksLoopback はhttptestサーバー（127.0.0.1）への接続が拒否されることをテストする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"https://example.com/shoe.png",
		"http://cdn.example.org/img/ball.jpg",
		"https://images.example.com:443/a.webp",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Blocked(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"",
		"ftp://example.com/a.png",
		"javascript:alert(1)",
		"file:///etc/passwd",
		"http://10.0.0.1/a.png",
		"http://172.16.0.1/a.png",
		"http://192.168.1.100/a.png",
		"http://127.0.0.1/a.png",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/a.png",
		"http://0.0.0.0/a.png",
		"http://localhost/a.png",
		"http://api.localhost/a.png",
		"http:///nohost",
	} {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Fatalf("ValidateURL(%q) should return error", u)
			}
			if !errors.Is(err, ErrBlockedURL) {
				t.Errorf("ValidateURL(%q) error = %v, want ErrBlockedURL", u, err)
			}
		})
	}
}

// TestValidateURL_MappedAndSharedAddresses はIPv4射影アドレスとCGNAT帯も拒否することを検証する。
func TestValidateURL_MappedAndSharedAddresses(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"http://[::ffff:127.0.0.1]/a.png",
		"http://[::ffff:10.1.2.3]/a.png",
		"http://100.64.0.1/a.png",
		"http://[fe80::1]/a.png",
		"HTTP://LOCALHOST/a.png",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); !errors.Is(err, ErrBlockedURL) {
				t.Errorf("ValidateURL(%q) = %v, want ErrBlockedURL", u, err)
			}
		})
	}
}

func TestIsInternalAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", false},
		{"93.184.216.34", false},
		{"2606:2800:220:1:248:1893:25c8:1946", false},
		{"172.15.255.255", false},
		{"172.16.0.1", true},
		{"169.254.169.254", true},
		{"::", true},
		{"fd00::1", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := isInternalAddr(netip.MustParseAddr(tt.addr)); got != tt.want {
				t.Errorf("isInternalAddr(%s) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}
