// Package proxy parses proxy settings and checks a proxy works before a
// run starts.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// Parse reads "host:port" or "user:pass@host:port". The result only sets
// the address and credentials.
func Parse(s string) (config.ProxyConfig, error) {
	var p config.ProxyConfig
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "http://")

	if at := strings.LastIndex(s, "@"); at >= 0 {
		user, pass, ok := strings.Cut(s[:at], ":")
		if !ok || user == "" || pass == "" {
			return p, fmt.Errorf("invalid proxy %q: credentials must be user:pass", s)
		}
		p.User, p.Pass = user, pass
		s = s[at+1:]
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return p, fmt.Errorf("invalid proxy %q: %w", s, err)
	}
	if host == "" {
		return p, fmt.Errorf("invalid proxy %q: missing host", s)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return p, fmt.Errorf("invalid proxy %q: bad port %q", s, port)
	}
	p.Host, p.Port = host, port
	return p, nil
}

// URL returns the proxy as an http URL, with credentials when set.
func URL(p config.ProxyConfig) *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Address()}
	if p.HasAuth() {
		u.User = url.UserPassword(p.User, p.Pass)
	}
	return u
}

// Verifier fetches a check page through a proxy.
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{logger: logger.Named("proxy")}
}

// Verify requests p.CheckURL through the proxy. Anything but a 200, or a
// body without the proxy host when ExpectHostIP is set, fails with
// ErrProxyUnreachable.
func (v *Verifier) Verify(ctx context.Context, p config.ProxyConfig) error {
	timeout := p.CheckTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	transport := &http.Transport{
		Proxy:             http.ProxyURL(URL(p)),
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.CheckURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrProxyUnreachable, err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrProxyUnreachable, p.Address(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: check returned %s", types.ErrProxyUnreachable, p.Address(), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", types.ErrProxyUnreachable, p.Address(), err)
	}
	if p.ExpectHostIP && !strings.Contains(string(body), p.Host) {
		return fmt.Errorf("%w: %s: check saw %q, not the proxy host",
			types.ErrProxyUnreachable, p.Address(), strings.TrimSpace(string(body)))
	}

	v.logger.Info("Proxy is working",
		zap.String("proxy", p.Address()),
		zap.Duration("latency", time.Since(start)))
	return nil
}
