package tunnel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testMockProvider implements Provider for testing. It tracks applied
// changes so tests can assert on what the reconciler actually did.
type testMockProvider struct {
	mu      sync.Mutex
	ingress map[string][]IngressRule // tunnelID -> rules

	upsertErr error
	removeErr error
}

func newTestMockProvider() *testMockProvider {
	return &testMockProvider{ingress: make(map[string][]IngressRule)}
}

func (m *testMockProvider) ListTunnels(ctx context.Context) ([]Tunnel, error) { return nil, nil }
func (m *testMockProvider) CreateTunnel(ctx context.Context, name string) (Tunnel, error) {
	return Tunnel{}, nil
}
func (m *testMockProvider) DeleteTunnel(ctx context.Context, tunnelID string) error { return nil }
func (m *testMockProvider) GetTunnelToken(ctx context.Context, tunnelID string) (string, error) {
	return "", nil
}

func (m *testMockProvider) ListIngress(ctx context.Context, tunnelID string) ([]IngressRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]IngressRule, len(m.ingress[tunnelID]))
	copy(out, m.ingress[tunnelID])
	return out, nil
}

func (m *testMockProvider) UpsertIngress(ctx context.Context, rule IngressRule) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := m.ingress[rule.TunnelID]
	for i, existing := range rules {
		if existing.Hostname == rule.Hostname {
			rules[i] = rule
			m.ingress[rule.TunnelID] = rules
			return nil
		}
	}
	m.ingress[rule.TunnelID] = append(rules, rule)
	return nil
}

func (m *testMockProvider) RemoveIngress(ctx context.Context, tunnelID, hostname string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := m.ingress[tunnelID]
	kept := rules[:0]
	for _, r := range rules {
		if r.Hostname != hostname {
			kept = append(kept, r)
		}
	}
	m.ingress[tunnelID] = kept
	return nil
}

func (m *testMockProvider) DeployTunnelConfig(ctx context.Context, tunnelID string, rules []IngressRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingress[tunnelID] = rules
	return nil
}

func TestReconciler_DesiredRules_ModeLabeled(t *testing.T) {
	r := New(newTestMockProvider(), NewMemIngressStore(), WithConfig(Config{
		Mode:              ModeLabeled,
		DefaultServiceURL: "http://localhost:8080",
	}))

	observations := []Observation{
		{ContainerID: "c1", Hostnames: []string{"app.example.com"}, Labels: map[string]string{"dns.tunnel": "tun-1"}},
		{ContainerID: "c2", Hostnames: []string{"other.example.com"}, Labels: map[string]string{}},
	}

	rules := r.DesiredRules(observations)
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1 (unlabeled container should be skipped in labeled mode)", len(rules))
	}
	if rules[0].Hostname != "app.example.com" || rules[0].TunnelID != "tun-1" {
		t.Fatalf("unexpected rule: %+v", rules[0])
	}
}

func TestReconciler_DesiredRules_ModeAll(t *testing.T) {
	r := New(newTestMockProvider(), NewMemIngressStore(), WithConfig(Config{
		Mode:              ModeAll,
		DefaultTunnelID:   "tun-default",
		DefaultServiceURL: "http://localhost:8080",
	}))

	observations := []Observation{
		{ContainerID: "c1", Hostnames: []string{"app.example.com"}, Labels: map[string]string{}},
	}

	rules := r.DesiredRules(observations)
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	if rules[0].TunnelID != "tun-default" {
		t.Fatalf("TunnelID = %q, want tun-default", rules[0].TunnelID)
	}
}

func TestReconciler_DesiredRules_PerContainerOverrides(t *testing.T) {
	r := New(newTestMockProvider(), NewMemIngressStore(), WithConfig(Config{
		Mode:              ModeAll,
		DefaultTunnelID:   "tun-default",
		DefaultServiceURL: "http://localhost:8080",
	}))

	observations := []Observation{
		{ContainerID: "c1", Hostnames: []string{"app.example.com"}, Labels: map[string]string{
			"dns.tunnel.service":        "http://localhost:9090",
			"dns.tunnel.path":           "/api",
			"dns.tunnel.notlsverify":    "true",
			"dns.tunnel.httphostheader": "internal.example.com",
		}},
	}

	rules := r.DesiredRules(observations)
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	got := rules[0]
	if got.Service != "http://localhost:9090" || got.Path != "/api" {
		t.Fatalf("unexpected rule: %+v", got)
	}
	if !got.Origin.NoTLSVerify || got.Origin.HTTPHostHeader != "internal.example.com" {
		t.Fatalf("unexpected origin: %+v", got.Origin)
	}
}

func TestReconciler_Reconcile_CreatesMissingRule(t *testing.T) {
	ctx := context.Background()
	p := newTestMockProvider()
	r := New(p, NewMemIngressStore())

	desired := []IngressRule{{TunnelID: "tun-1", Hostname: "app.example.com", Service: "http://localhost:8080"}}
	actions, err := r.Reconcile(ctx, "tun-1", desired)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != "create" {
		t.Fatalf("actions = %+v, want one create", actions)
	}

	live, _ := p.ListIngress(ctx, "tun-1")
	if len(live) != 1 || live[0].Hostname != "app.example.com" {
		t.Fatalf("provider state = %+v, want the new rule applied", live)
	}
}

func TestReconciler_Reconcile_NoChangeIsNoop(t *testing.T) {
	ctx := context.Background()
	p := newTestMockProvider()
	rule := IngressRule{TunnelID: "tun-1", Hostname: "app.example.com", Service: "http://localhost:8080"}
	p.ingress["tun-1"] = []IngressRule{rule}

	r := New(p, NewMemIngressStore())
	actions, err := r.Reconcile(ctx, "tun-1", []IngressRule{rule})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("actions = %+v, want none for an already-matching rule", actions)
	}
}

func TestReconciler_Reconcile_ImmediateDeleteWithoutStore(t *testing.T) {
	ctx := context.Background()
	p := newTestMockProvider()
	p.ingress["tun-1"] = []IngressRule{{TunnelID: "tun-1", Hostname: "gone.example.com", Source: SourceAuto}}

	r := New(p, nil)
	actions, err := r.Reconcile(ctx, "tun-1", nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != "delete" {
		t.Fatalf("actions = %+v, want one delete", actions)
	}
	if live, _ := p.ListIngress(ctx, "tun-1"); len(live) != 0 {
		t.Fatalf("provider state = %+v, want the rule removed", live)
	}
}

func TestReconciler_Reconcile_GracePeriodDelaysDelete(t *testing.T) {
	ctx := context.Background()
	p := newTestMockProvider()
	p.ingress["tun-1"] = []IngressRule{{TunnelID: "tun-1", Hostname: "gone.example.com", Source: SourceAuto}}

	store := NewMemIngressStore()
	r := New(p, store, WithConfig(Config{GracePeriod: time.Hour}))

	actions, err := r.Reconcile(ctx, "tun-1", nil)
	if err != nil {
		t.Fatalf("Reconcile (first pass): %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("first pass actions = %+v, want none (rule should enter grace period)", actions)
	}
	if live, _ := p.ListIngress(ctx, "tun-1"); len(live) != 1 {
		t.Fatalf("rule should still be live during grace period, got %+v", live)
	}

	marked, ok, err := store.GetByKey(ctx, Key{TunnelID: "tun-1", Hostname: "gone.example.com"})
	if err != nil || !ok || marked.OrphanedAt == nil {
		t.Fatalf("expected rule to be marked orphaned, got %+v ok=%v err=%v", marked, ok, err)
	}

	// Simulate the grace period having elapsed.
	past := time.Now().Add(-2 * time.Hour)
	marked.OrphanedAt = &past
	tx, _ := store.Begin(ctx)
	_ = store.Upsert(ctx, tx, marked)
	_ = tx.Commit(ctx)

	actions, err = r.Reconcile(ctx, "tun-1", nil)
	if err != nil {
		t.Fatalf("Reconcile (second pass): %v", err)
	}
	if len(actions) != 1 || actions[0].Type != "delete" {
		t.Fatalf("second pass actions = %+v, want one delete", actions)
	}
	if live, _ := p.ListIngress(ctx, "tun-1"); len(live) != 0 {
		t.Fatalf("provider state = %+v, want the rule removed after grace period", live)
	}
}

func TestReconciler_Reconcile_APISourceNeverDeleted(t *testing.T) {
	ctx := context.Background()
	p := newTestMockProvider()
	p.ingress["tun-1"] = []IngressRule{{TunnelID: "tun-1", Hostname: "manual.example.com", Source: SourceAPI}}

	r := New(p, nil)
	actions, err := r.Reconcile(ctx, "tun-1", nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("actions = %+v, want none (api-sourced rule must survive)", actions)
	}
	if live, _ := p.ListIngress(ctx, "tun-1"); len(live) != 1 {
		t.Fatalf("provider state = %+v, want the manual rule preserved", live)
	}
}

func TestReconciler_Reconcile_DryRunDoesNotApply(t *testing.T) {
	ctx := context.Background()
	p := newTestMockProvider()
	r := New(p, nil, WithConfig(Config{DryRun: true}))

	desired := []IngressRule{{TunnelID: "tun-1", Hostname: "app.example.com", Service: "http://localhost:8080"}}
	actions, err := r.Reconcile(ctx, "tun-1", desired)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != "create" {
		t.Fatalf("actions = %+v, want one create action recorded", actions)
	}
	if live, _ := p.ListIngress(ctx, "tun-1"); len(live) != 0 {
		t.Fatalf("provider state = %+v, want no changes applied in dry-run", live)
	}
}

func TestReconciler_Reconcile_UpsertErrorBecomesSkipAction(t *testing.T) {
	ctx := context.Background()
	p := newTestMockProvider()
	p.upsertErr = errors.New("boom")

	r := New(p, nil)
	desired := []IngressRule{{TunnelID: "tun-1", Hostname: "app.example.com", Service: "http://localhost:8080"}}
	actions, err := r.Reconcile(ctx, "tun-1", desired)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != "skip" || actions[0].Error == "" {
		t.Fatalf("actions = %+v, want one skip action with an error", actions)
	}
}

func TestReconciler_Reconcile_ListIngressError(t *testing.T) {
	ctx := context.Background()
	r := New(erroringProvider{}, nil)
	if _, err := r.Reconcile(ctx, "tun-1", nil); err == nil {
		t.Fatal("expected an error when ListIngress fails")
	}
}

// erroringProvider implements Provider with every call failing except
// ListIngress's error path under test.
type erroringProvider struct{}

func (erroringProvider) ListTunnels(ctx context.Context) ([]Tunnel, error) { return nil, nil }
func (erroringProvider) CreateTunnel(ctx context.Context, name string) (Tunnel, error) {
	return Tunnel{}, nil
}
func (erroringProvider) DeleteTunnel(ctx context.Context, tunnelID string) error { return nil }
func (erroringProvider) GetTunnelToken(ctx context.Context, tunnelID string) (string, error) {
	return "", nil
}
func (erroringProvider) ListIngress(ctx context.Context, tunnelID string) ([]IngressRule, error) {
	return nil, errors.New("listing failed")
}
func (erroringProvider) UpsertIngress(ctx context.Context, rule IngressRule) error { return nil }
func (erroringProvider) RemoveIngress(ctx context.Context, tunnelID, hostname string) error {
	return nil
}
func (erroringProvider) DeployTunnelConfig(ctx context.Context, tunnelID string, rules []IngressRule) error {
	return nil
}
