package tunnel

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

// CloudflareConfig holds the credentials and account scoping needed to
// manage Zero Trust Tunnels through the Cloudflare API.
type CloudflareConfig struct {
	APIToken  string // Bearer token (preferred)
	APIKey    string // Global API key, used with Email if APIToken is unset
	Email     string
	AccountID string
}

// Validate checks that enough credentials were supplied to authenticate.
func (c CloudflareConfig) Validate() error {
	if c.APIToken == "" && (c.APIKey == "" || c.Email == "") {
		return fmt.Errorf("cloudflare tunnel: APIToken or (APIKey and Email) is required")
	}
	if c.AccountID == "" {
		return fmt.Errorf("cloudflare tunnel: AccountID is required")
	}
	return nil
}

// cfClient is the subset of *cloudflare.API this package drives. Narrowing
// it to an interface lets tests substitute a fake instead of hitting the
// real API.
type cfClient interface {
	ListTunnels(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.TunnelListParams) ([]cloudflare.Tunnel, *cloudflare.ResultInfo, error)
	CreateTunnel(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.TunnelCreateParams) (cloudflare.Tunnel, error)
	CleanupTunnelConnections(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) error
	DeleteTunnel(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) error
	GetTunnelToken(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) (string, error)
	GetTunnelConfiguration(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) (cloudflare.TunnelConfigurationResult, error)
	UpdateTunnelConfiguration(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.TunnelConfigurationParams) (cloudflare.TunnelConfigurationResult, error)
}

// CloudflareProvider implements Provider against Cloudflare Zero Trust
// Tunnels, using the account's remotely-managed ("cloudflare") config
// source so cloudflared pulls its ingress rules from the API directly.
type CloudflareProvider struct {
	api       cfClient
	accountID string
	logger    *slog.Logger
}

// CloudflareOption configures a CloudflareProvider.
type CloudflareOption func(*CloudflareProvider)

// WithCloudflareLogger sets a custom logger.
func WithCloudflareLogger(logger *slog.Logger) CloudflareOption {
	return func(p *CloudflareProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewCloudflareProvider builds a Provider backed by the cloudflare-go client.
func NewCloudflareProvider(cfg CloudflareConfig, opts ...CloudflareOption) (*CloudflareProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var api *cloudflare.API
	var err error
	switch {
	case cfg.APIToken != "":
		api, err = cloudflare.NewWithAPIToken(cfg.APIToken)
	default:
		api, err = cloudflare.New(cfg.APIKey, cfg.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("creating cloudflare client: %w", err)
	}

	return newCloudflareProvider(api, cfg.AccountID, opts...), nil
}

func newCloudflareProvider(api cfClient, accountID string, opts ...CloudflareOption) *CloudflareProvider {
	p := &CloudflareProvider{
		api:       api,
		accountID: accountID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *CloudflareProvider) rc() *cloudflare.ResourceContainer {
	return cloudflare.AccountIdentifier(p.accountID)
}

// ListTunnels returns every tunnel in the account.
func (p *CloudflareProvider) ListTunnels(ctx context.Context) ([]Tunnel, error) {
	tunnels, _, err := p.api.ListTunnels(ctx, p.rc(), cloudflare.TunnelListParams{})
	if err != nil {
		return nil, fmt.Errorf("listing tunnels: %w", err)
	}

	out := make([]Tunnel, 0, len(tunnels))
	for _, t := range tunnels {
		out = append(out, Tunnel{
			ID:               t.ID,
			ProviderID:       p.accountID,
			ExternalTunnelID: t.ID,
			Name:             t.Name,
		})
	}
	return out, nil
}

// CreateTunnel provisions a new remotely-managed tunnel.
func (p *CloudflareProvider) CreateTunnel(ctx context.Context, name string) (Tunnel, error) {
	secret, err := randomTunnelSecret()
	if err != nil {
		return Tunnel{}, fmt.Errorf("generating tunnel secret: %w", err)
	}

	params := cloudflare.TunnelCreateParams{
		Name:      name,
		Secret:    secret,
		ConfigSrc: "cloudflare",
	}

	t, err := p.api.CreateTunnel(ctx, p.rc(), params)
	if err != nil {
		return Tunnel{}, fmt.Errorf("creating tunnel %q: %w", name, err)
	}

	p.logger.Info("created cloudflare tunnel", slog.String("tunnel", t.ID), slog.String("name", name))
	return Tunnel{ID: t.ID, ProviderID: p.accountID, ExternalTunnelID: t.ID, Name: t.Name}, nil
}

// DeleteTunnel tears down connections and removes the tunnel. Idempotent:
// a not-found tunnel is treated as already deleted.
func (p *CloudflareProvider) DeleteTunnel(ctx context.Context, tunnelID string) error {
	if err := p.api.CleanupTunnelConnections(ctx, p.rc(), tunnelID); err != nil {
		if !isNotFoundError(err) {
			return fmt.Errorf("cleaning up tunnel connections for %s: %w", tunnelID, err)
		}
	}

	if err := p.api.DeleteTunnel(ctx, p.rc(), tunnelID); err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("deleting tunnel %s: %w", tunnelID, err)
	}
	return nil
}

// GetTunnelToken retrieves the token cloudflared uses to connect with
// --token, pulling its ingress configuration from the API.
func (p *CloudflareProvider) GetTunnelToken(ctx context.Context, tunnelID string) (string, error) {
	token, err := p.api.GetTunnelToken(ctx, p.rc(), tunnelID)
	if err != nil {
		return "", fmt.Errorf("getting tunnel token for %s: %w", tunnelID, err)
	}
	return token, nil
}

// ListIngress reads the tunnel's current remotely-managed configuration and
// converts it back into IngressRules. The catch-all rule cloudflared
// requires at the end of every configuration (an empty-hostname rule with
// no service match) is not an ingress rule by our model and is skipped.
func (p *CloudflareProvider) ListIngress(ctx context.Context, tunnelID string) ([]IngressRule, error) {
	result, err := p.api.GetTunnelConfiguration(ctx, p.rc(), tunnelID)
	if err != nil {
		return nil, fmt.Errorf("getting tunnel configuration for %s: %w", tunnelID, err)
	}

	rules := make([]IngressRule, 0, len(result.Config.Ingress))
	for _, ing := range result.Config.Ingress {
		if ing.Hostname == "" {
			continue
		}
		rules = append(rules, IngressRule{
			TunnelID: tunnelID,
			Hostname: ing.Hostname,
			Service:  ing.Service,
			Path:     ing.Path,
			Origin:   originOptionsFromSDK(ing.OriginRequest),
			Source:   SourceAPI,
		})
	}
	return rules, nil
}

// UpsertIngress adds or replaces the rule for rule.Hostname within
// rule.TunnelID's configuration and pushes the full ingress set back, since
// the Cloudflare API replaces the whole list on every update.
func (p *CloudflareProvider) UpsertIngress(ctx context.Context, rule IngressRule) error {
	current, err := p.ListIngress(ctx, rule.TunnelID)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range current {
		if existing.Hostname == rule.Hostname {
			current[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		current = append(current, rule)
	}

	return p.DeployTunnelConfig(ctx, rule.TunnelID, current)
}

// RemoveIngress drops the rule for hostname and pushes the remaining set.
func (p *CloudflareProvider) RemoveIngress(ctx context.Context, tunnelID, hostname string) error {
	current, err := p.ListIngress(ctx, tunnelID)
	if err != nil {
		return err
	}

	kept := current[:0]
	for _, existing := range current {
		if existing.Hostname != hostname {
			kept = append(kept, existing)
		}
	}

	return p.DeployTunnelConfig(ctx, tunnelID, kept)
}

// DeployTunnelConfig replaces the tunnel's remotely-managed ingress
// configuration wholesale, appending the mandatory catch-all 404 rule
// cloudflared requires as the last entry.
func (p *CloudflareProvider) DeployTunnelConfig(ctx context.Context, tunnelID string, rules []IngressRule) error {
	sdkRules := make([]cloudflare.UnvalidatedIngressRule, 0, len(rules)+1)
	for _, rule := range rules {
		sdkRules = append(sdkRules, cloudflare.UnvalidatedIngressRule{
			Hostname:      rule.Hostname,
			Path:          rule.Path,
			Service:       rule.Service,
			OriginRequest: originOptionsToSDK(rule.Origin),
		})
	}
	sdkRules = append(sdkRules, cloudflare.UnvalidatedIngressRule{Service: "http_status:404"})

	cfConfig := cloudflare.TunnelConfiguration{Ingress: sdkRules}
	params := cloudflare.TunnelConfigurationParams{TunnelID: tunnelID, Config: cfConfig}

	result, err := p.api.UpdateTunnelConfiguration(ctx, p.rc(), params)
	if err != nil {
		return fmt.Errorf("deploying ingress config for tunnel %s: %w", tunnelID, err)
	}

	p.logger.Info("deployed tunnel ingress configuration",
		slog.String("tunnel", tunnelID),
		slog.Int("version", result.Version),
		slog.Int("rules", len(rules)),
	)
	return nil
}

// randomTunnelSecret generates the 32-byte tunnel secret Cloudflare requires
// at creation time, base64-encoded the way cloudflared expects it.
func randomTunnelSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func originOptionsToSDK(o OriginOptions) *cloudflare.OriginRequestConfig {
	if o == (OriginOptions{}) {
		return nil
	}
	return &cloudflare.OriginRequestConfig{
		NoTLSVerify:    &o.NoTLSVerify,
		HTTPHostHeader: &o.HTTPHostHeader,
	}
}

func originOptionsFromSDK(o *cloudflare.OriginRequestConfig) OriginOptions {
	if o == nil {
		return OriginOptions{}
	}
	var out OriginOptions
	if o.NoTLSVerify != nil {
		out.NoTLSVerify = *o.NoTLSVerify
	}
	if o.HTTPHostHeader != nil {
		out.HTTPHostHeader = *o.HTTPHostHeader
	}
	return out
}

// isNotFoundError matches common "not found" phrasing in the Cloudflare
// API's error messages; the SDK does not expose a typed not-found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "does not exist") ||
		strings.Contains(errStr, "404")
}
