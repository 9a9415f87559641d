package tunnel

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudflare/cloudflare-go"
)

// fakeCFClient is a hand-written stand-in for *cloudflare.API, scoped to the
// subset of methods CloudflareProvider drives.
type fakeCFClient struct {
	tunnels  []cloudflare.Tunnel
	listErr  error
	createFn func(params cloudflare.TunnelCreateParams) (cloudflare.Tunnel, error)

	cleanupErr error
	deleteErr  error

	token    string
	tokenErr error

	config    cloudflare.TunnelConfigurationResult
	getCfgErr error
	updateErr error

	lastUpdateParams cloudflare.TunnelConfigurationParams
}

func (f *fakeCFClient) ListTunnels(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.TunnelListParams) ([]cloudflare.Tunnel, *cloudflare.ResultInfo, error) {
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	return f.tunnels, &cloudflare.ResultInfo{}, nil
}

func (f *fakeCFClient) CreateTunnel(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.TunnelCreateParams) (cloudflare.Tunnel, error) {
	if f.createFn != nil {
		return f.createFn(params)
	}
	return cloudflare.Tunnel{ID: "tun-new", Name: params.Name}, nil
}

func (f *fakeCFClient) CleanupTunnelConnections(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) error {
	return f.cleanupErr
}

func (f *fakeCFClient) DeleteTunnel(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) error {
	return f.deleteErr
}

func (f *fakeCFClient) GetTunnelToken(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) (string, error) {
	return f.token, f.tokenErr
}

func (f *fakeCFClient) GetTunnelConfiguration(ctx context.Context, rc *cloudflare.ResourceContainer, tunnelID string) (cloudflare.TunnelConfigurationResult, error) {
	return f.config, f.getCfgErr
}

func (f *fakeCFClient) UpdateTunnelConfiguration(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.TunnelConfigurationParams) (cloudflare.TunnelConfigurationResult, error) {
	f.lastUpdateParams = params
	if f.updateErr != nil {
		return cloudflare.TunnelConfigurationResult{}, f.updateErr
	}
	f.config.Config = params.Config
	f.config.Version++
	return f.config, nil
}

func TestCloudflareConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CloudflareConfig
		wantErr bool
	}{
		{"token and account", CloudflareConfig{APIToken: "tok", AccountID: "acc"}, false},
		{"key and email and account", CloudflareConfig{APIKey: "key", Email: "a@b.com", AccountID: "acc"}, false},
		{"no credentials", CloudflareConfig{AccountID: "acc"}, true},
		{"key without email", CloudflareConfig{APIKey: "key", AccountID: "acc"}, true},
		{"missing account", CloudflareConfig{APIToken: "tok"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloudflareProvider_ListTunnels(t *testing.T) {
	fake := &fakeCFClient{tunnels: []cloudflare.Tunnel{{ID: "tun-1", Name: "prod"}}}
	p := newCloudflareProvider(fake, "acc-1")

	got, err := p.ListTunnels(context.Background())
	if err != nil {
		t.Fatalf("ListTunnels: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tun-1" || got[0].ProviderID != "acc-1" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCloudflareProvider_CreateTunnel(t *testing.T) {
	fake := &fakeCFClient{}
	p := newCloudflareProvider(fake, "acc-1")

	got, err := p.CreateTunnel(context.Background(), "prod")
	if err != nil {
		t.Fatalf("CreateTunnel: %v", err)
	}
	if got.ID != "tun-new" || got.Name != "prod" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCloudflareProvider_DeleteTunnel_NotFoundIsIdempotent(t *testing.T) {
	fake := &fakeCFClient{deleteErr: errors.New("tunnel not found")}
	p := newCloudflareProvider(fake, "acc-1")

	if err := p.DeleteTunnel(context.Background(), "tun-1"); err != nil {
		t.Fatalf("DeleteTunnel should swallow not-found errors, got: %v", err)
	}
}

func TestCloudflareProvider_DeleteTunnel_OtherErrorPropagates(t *testing.T) {
	fake := &fakeCFClient{deleteErr: errors.New("rate limited")}
	p := newCloudflareProvider(fake, "acc-1")

	if err := p.DeleteTunnel(context.Background(), "tun-1"); err == nil {
		t.Fatal("expected a non-not-found error to propagate")
	}
}

func TestCloudflareProvider_ListIngress_SkipsCatchAll(t *testing.T) {
	fake := &fakeCFClient{
		config: cloudflare.TunnelConfigurationResult{
			Config: cloudflare.TunnelConfiguration{
				Ingress: []cloudflare.UnvalidatedIngressRule{
					{Hostname: "app.example.com", Service: "http://localhost:8080"},
					{Service: "http_status:404"},
				},
			},
		},
	}
	p := newCloudflareProvider(fake, "acc-1")

	rules, err := p.ListIngress(context.Background(), "tun-1")
	if err != nil {
		t.Fatalf("ListIngress: %v", err)
	}
	if len(rules) != 1 || rules[0].Hostname != "app.example.com" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	if rules[0].Source != SourceAPI {
		t.Fatalf("rules read back from the API should be SourceAPI, got %v", rules[0].Source)
	}
}

func TestCloudflareProvider_DeployTunnelConfig_AppendsCatchAll(t *testing.T) {
	fake := &fakeCFClient{}
	p := newCloudflareProvider(fake, "acc-1")

	rules := []IngressRule{{TunnelID: "tun-1", Hostname: "app.example.com", Service: "http://localhost:8080"}}
	if err := p.DeployTunnelConfig(context.Background(), "tun-1", rules); err != nil {
		t.Fatalf("DeployTunnelConfig: %v", err)
	}

	ingress := fake.lastUpdateParams.Config.Ingress
	if len(ingress) != 2 {
		t.Fatalf("got %d ingress rules, want 2 (rule + catch-all)", len(ingress))
	}
	if ingress[len(ingress)-1].Hostname != "" || ingress[len(ingress)-1].Service != "http_status:404" {
		t.Fatalf("last rule should be the catch-all, got %+v", ingress[len(ingress)-1])
	}
}

func TestCloudflareProvider_UpsertIngress_ReplacesExisting(t *testing.T) {
	fake := &fakeCFClient{
		config: cloudflare.TunnelConfigurationResult{
			Config: cloudflare.TunnelConfiguration{
				Ingress: []cloudflare.UnvalidatedIngressRule{
					{Hostname: "app.example.com", Service: "http://localhost:8080"},
				},
			},
		},
	}
	p := newCloudflareProvider(fake, "acc-1")

	updated := IngressRule{TunnelID: "tun-1", Hostname: "app.example.com", Service: "http://localhost:9090"}
	if err := p.UpsertIngress(context.Background(), updated); err != nil {
		t.Fatalf("UpsertIngress: %v", err)
	}

	ingress := fake.lastUpdateParams.Config.Ingress
	if len(ingress) != 2 {
		t.Fatalf("got %d ingress rules, want 2 (replaced rule + catch-all)", len(ingress))
	}
	if ingress[0].Service != "http://localhost:9090" {
		t.Fatalf("existing rule should have been replaced, got %+v", ingress[0])
	}
}

func TestCloudflareProvider_RemoveIngress(t *testing.T) {
	fake := &fakeCFClient{
		config: cloudflare.TunnelConfigurationResult{
			Config: cloudflare.TunnelConfiguration{
				Ingress: []cloudflare.UnvalidatedIngressRule{
					{Hostname: "app.example.com", Service: "http://localhost:8080"},
					{Hostname: "other.example.com", Service: "http://localhost:9090"},
				},
			},
		},
	}
	p := newCloudflareProvider(fake, "acc-1")

	if err := p.RemoveIngress(context.Background(), "tun-1", "app.example.com"); err != nil {
		t.Fatalf("RemoveIngress: %v", err)
	}

	ingress := fake.lastUpdateParams.Config.Ingress
	if len(ingress) != 2 {
		t.Fatalf("got %d ingress rules, want 2 (remaining rule + catch-all)", len(ingress))
	}
	if ingress[0].Hostname != "other.example.com" {
		t.Fatalf("unexpected remaining rule: %+v", ingress[0])
	}
}

func TestOriginOptionsRoundTrip(t *testing.T) {
	opts := OriginOptions{NoTLSVerify: true, HTTPHostHeader: "internal.example.com"}
	sdk := originOptionsToSDK(opts)
	if sdk == nil {
		t.Fatal("expected a non-nil OriginRequestConfig for non-zero options")
	}
	got := originOptionsFromSDK(sdk)
	if got != opts {
		t.Fatalf("round trip = %+v, want %+v", got, opts)
	}
}

func TestOriginOptionsToSDK_ZeroValueOmitted(t *testing.T) {
	if got := originOptionsToSDK(OriginOptions{}); got != nil {
		t.Fatalf("zero-value OriginOptions should produce a nil OriginRequestConfig, got %+v", got)
	}
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("tunnel not found"), true},
		{errors.New("zone does not exist"), true},
		{errors.New("HTTP 404"), true},
		{errors.New("rate limited"), false},
	}
	for _, tt := range tests {
		if got := isNotFoundError(tt.err); got != tt.want {
			t.Fatalf("isNotFoundError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
