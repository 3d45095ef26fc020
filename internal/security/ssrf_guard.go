package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrBlockedURL は画像URLが取得ポリシーで拒否されたことを表す。
var ErrBlockedURL = errors.New("url blocked by ssrf policy")

// SSRFGuardService は画像プロキシが外部URLを取得する前の検査と、
// 検査済みの接続だけを行うHTTPクライアントを提供する。
type SSRFGuardService interface {
	// NewSafeClient は内部アドレスへのダイヤルを拒否するクライアントを返す。
	// 判定はDNS解決後の実IPに対して行う。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はDNSを引かずに判定できる範囲でURLを検査する。
	// 拒否時はErrBlockedURLをラップしたエラーを返す。
	ValidateURL(rawURL string) error
}

var (
	fetchSchemes = []string{"http", "https"}
	fetchPorts   = []int{80, 443}
)

// internalPrefixes は画像取得先として認めないアドレス帯。
var internalPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // メタデータIP
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

type ssrfGuard struct{}

// NewSSRFGuard は画像プロキシ用のSSRFGuardServiceを返す。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(fetchSchemes...).
		SetAllowedPorts(fetchPorts...).
		Build()

	return safeurl.Client(cfg).Client
}

func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return blocked("empty URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return blocked("invalid URL: %v", err)
	}
	if scheme := strings.ToLower(u.Scheme); !slices.Contains(fetchSchemes, scheme) {
		return blocked("disallowed scheme %q", scheme)
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "":
		return blocked("empty host")
	case host == "localhost" || strings.HasSuffix(host, ".localhost"):
		return blocked("blocked host %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil && isInternalAddr(addr) {
		return blocked("blocked IP address %s", addr)
	}
	return nil
}

// isInternalAddr はIPv4射影アドレスを展開したうえで内部アドレス帯かを判定する。
func isInternalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
		return true
	}
	return slices.ContainsFunc(internalPrefixes, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}

func blocked(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrBlockedURL}, args...)...)
}
