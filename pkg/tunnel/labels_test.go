package tunnel

import "testing"

func TestWantsTunnel(t *testing.T) {
	tests := []struct {
		name         string
		labels       map[string]string
		wantID       string
		wantExplicit bool
	}{
		{"no label", map[string]string{}, "", false},
		{"bool true", map[string]string{"dns.tunnel": "true"}, "", true},
		{"bool false", map[string]string{"dns.tunnel": "false"}, "", false},
		{"explicit tunnel id", map[string]string{"dns.tunnel": "tun-1"}, "tun-1", true},
		{"blank value", map[string]string{"dns.tunnel": "  "}, "", false},
		{"whitespace trimmed id", map[string]string{"dns.tunnel": " tun-1 "}, "tun-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, explicit := wantsTunnel(tt.labels, "dns")
			if id != tt.wantID || explicit != tt.wantExplicit {
				t.Fatalf("wantsTunnel() = (%q, %v), want (%q, %v)", id, explicit, tt.wantID, tt.wantExplicit)
			}
		})
	}
}

func TestLookupLabel(t *testing.T) {
	labels := map[string]string{
		"dns.tunnel.service": "http://localhost:8080",
		"dns.tunnel.path":    "  ",
	}

	if v, ok := lookupLabel(labels, "dns", "service"); !ok || v != "http://localhost:8080" {
		t.Fatalf("lookupLabel(service) = (%q, %v), want (http://localhost:8080, true)", v, ok)
	}
	if _, ok := lookupLabel(labels, "dns", "path"); ok {
		t.Fatal("lookupLabel(path) should report not-ok for a blank value")
	}
	if _, ok := lookupLabel(labels, "dns", "missing"); ok {
		t.Fatal("lookupLabel(missing) should report not-ok")
	}
}

func TestLookupBoolLabel(t *testing.T) {
	labels := map[string]string{
		"dns.tunnel.notlsverify": "true",
		"dns.tunnel.bogus":       "not-a-bool",
	}

	if !lookupBoolLabel(labels, "dns", "notlsverify") {
		t.Fatal("expected notlsverify to be true")
	}
	if lookupBoolLabel(labels, "dns", "bogus") {
		t.Fatal("expected unparseable value to be false")
	}
	if lookupBoolLabel(labels, "dns", "missing") {
		t.Fatal("expected missing label to be false")
	}
}
