// Package ipdiscovery resolves the host's current public IPv4/IPv6 addresses
// by querying a configurable, ordered list of external echo services. It
// implements pkg/intent.IPResolver for use by the Intent Builder when filling
// in apex A/AAAA records whose content is otherwise unspecified.
package ipdiscovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultIPv4Sources is the ordered list of endpoints queried for the
// host's public IPv4 address. The first source to return a well-formed
// address wins.
var DefaultIPv4Sources = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://checkip.amazonaws.com",
}

// DefaultIPv6Sources is the ordered list of endpoints queried for the
// host's public IPv6 address.
var DefaultIPv6Sources = []string{
	"https://api6.ipify.org",
	"https://ifconfig.co/ip",
}

// DefaultTimeout bounds each individual HTTP lookup.
const DefaultTimeout = 10 * time.Second

// DefaultRefreshInterval is how often a cached address is allowed to go
// stale before the next PublicIPv4/PublicIPv6 call triggers a re-resolve.
const DefaultRefreshInterval = 5 * time.Minute

// Resolver discovers and caches the host's public IP addresses. It is safe
// for concurrent use.
type Resolver struct {
	ipv4Sources []string
	ipv6Sources []string
	httpClient  *http.Client
	interval    time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	ipv4      string
	ipv4At    time.Time
	ipv4Valid bool
	ipv6      string
	ipv6At    time.Time
	ipv6Valid bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(r *Resolver) { r.httpClient = httpClient }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRefreshInterval sets how long a resolved address is reused before the
// next lookup re-queries the sources.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithIPv4Sources overrides the default IPv4 echo service list.
func WithIPv4Sources(sources []string) Option {
	return func(r *Resolver) {
		if len(sources) > 0 {
			r.ipv4Sources = sources
		}
	}
}

// WithIPv6Sources overrides the default IPv6 echo service list.
func WithIPv6Sources(sources []string) Option {
	return func(r *Resolver) {
		if len(sources) > 0 {
			r.ipv6Sources = sources
		}
	}
}

// New creates a Resolver with the default refresh interval and sources.
// Pass opts to override the interval, HTTP client, sources, or logging.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		ipv4Sources: DefaultIPv4Sources,
		ipv6Sources: DefaultIPv6Sources,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		interval:    DefaultRefreshInterval,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PublicIPv4 returns the host's cached or freshly-resolved public IPv4
// address. ok is false if every source failed.
func (r *Resolver) PublicIPv4(ctx context.Context) (string, bool) {
	return r.resolve(ctx, &r.ipv4, &r.ipv4At, &r.ipv4Valid, r.ipv4Sources, false)
}

// PublicIPv6 returns the host's cached or freshly-resolved public IPv6
// address. ok is false if every source failed.
func (r *Resolver) PublicIPv6(ctx context.Context) (string, bool) {
	return r.resolve(ctx, &r.ipv6, &r.ipv6At, &r.ipv6Valid, r.ipv6Sources, true)
}

func (r *Resolver) resolve(ctx context.Context, cached *string, lastAt *time.Time, valid *bool, sources []string, wantV6 bool) (string, bool) {
	r.mu.Lock()
	if *valid && time.Since(*lastAt) < r.interval {
		ip := *cached
		r.mu.Unlock()
		return ip, true
	}
	r.mu.Unlock()

	ip, err := queryFirst(ctx, r.httpClient, sources, wantV6)
	if err != nil {
		r.logger.Warn("public IP resolution failed",
			slog.Bool("ipv6", wantV6),
			slog.String("error", err.Error()),
		)
		r.mu.Lock()
		if *valid {
			// Serve the stale cached value rather than losing the apex record.
			ip := *cached
			r.mu.Unlock()
			return ip, true
		}
		r.mu.Unlock()
		return "", false
	}

	r.mu.Lock()
	*cached = ip
	*lastAt = time.Now()
	*valid = true
	r.mu.Unlock()

	return ip, true
}

// queryFirst tries each source in order and returns the first well-formed
// address. wantV6 filters out results that parse as IPv4.
func queryFirst(ctx context.Context, client *http.Client, sources []string, wantV6 bool) (string, error) {
	var lastErr error
	for _, src := range sources {
		ip, err := fetch(ctx, client, src)
		if err != nil {
			lastErr = err
			continue
		}

		addr, perr := netip(ip)
		if perr != nil {
			lastErr = perr
			continue
		}
		isV6 := strings.Contains(addr, ":")
		if isV6 != wantV6 {
			lastErr = fmt.Errorf("%s returned unexpected address family: %s", src, addr)
			continue
		}
		return addr, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no IP sources configured")
	}
	return "", lastErr
}

func fetch(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", url, err)
	}

	return strings.TrimSpace(string(body)), nil
}

func netip(s string) (string, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return "", fmt.Errorf("not a valid IP address: %q", s)
	}
	return ip.String(), nil
}
