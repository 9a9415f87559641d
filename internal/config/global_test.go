package config

import (
	"os"
	"testing"
	"time"
)

// clearGlobalEnv removes the TRAFEGODNS_ environment variables listed below.
func clearGlobalEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"TRAFEGODNS_LOG_LEVEL",
		"TRAFEGODNS_LOG_FORMAT",
		"TRAFEGODNS_DRY_RUN",
		"TRAFEGODNS_CLEANUP_ORPHANS",
		"TRAFEGODNS_OWNERSHIP_TRACKING",
		"TRAFEGODNS_ADOPT_EXISTING",
		"TRAFEGODNS_DEFAULT_TTL",
		"TRAFEGODNS_RECONCILE_INTERVAL",
		"TRAFEGODNS_HEALTH_PORT",
		"TRAFEGODNS_DOCKER_HOST",
		"TRAFEGODNS_DOCKER_MODE",
		"TRAFEGODNS_SOURCE",
		"TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN",
		"TRAFEGODNS_DNS_ROUTING_MODE",
		"TRAFEGODNS_DNS_MULTI_PROVIDER_SAME_ZONE",
		"TRAFEGODNS_DNS_DEFAULT_MANAGE",
		"TRAFEGODNS_TUNNEL_MODE",
		"TRAFEGODNS_TUNNEL_DEFAULT_TUNNEL_ID",
		"TRAFEGODNS_TUNNEL_DEFAULT_SERVICE_URL",
		"TRAFEGODNS_IP_REFRESH_INTERVAL_MS",
		"TRAFEGODNS_STATE_PATH",
		"TRAFEGODNS_OPERATION_MODE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoadGlobalConfig_Defaults(t *testing.T) {
	clearGlobalEnv(t)

	cfg, errs := loadGlobalConfig()

	if len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	// Check defaults
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.LogFormat != DefaultLogFormat {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, DefaultLogFormat)
	}
	if cfg.DryRun != DefaultDryRun {
		t.Errorf("DryRun = %v, want %v", cfg.DryRun, DefaultDryRun)
	}
	if cfg.CleanupOrphans != DefaultCleanupOrphans {
		t.Errorf("CleanupOrphans = %v, want %v", cfg.CleanupOrphans, DefaultCleanupOrphans)
	}
	if cfg.OwnershipTracking != DefaultOwnershipTracking {
		t.Errorf("OwnershipTracking = %v, want %v", cfg.OwnershipTracking, DefaultOwnershipTracking)
	}
	if cfg.AdoptExisting != DefaultAdoptExisting {
		t.Errorf("AdoptExisting = %v, want %v", cfg.AdoptExisting, DefaultAdoptExisting)
	}
	if cfg.DefaultTTL != DefaultTTL {
		t.Errorf("DefaultTTL = %d, want %d", cfg.DefaultTTL, DefaultTTL)
	}
	if cfg.ReconcileInterval != DefaultReconcileInterval {
		t.Errorf("ReconcileInterval = %v, want %v", cfg.ReconcileInterval, DefaultReconcileInterval)
	}
	if cfg.HealthPort != DefaultHealthPort {
		t.Errorf("HealthPort = %d, want %d", cfg.HealthPort, DefaultHealthPort)
	}
	if cfg.DockerHost != DefaultDockerHost {
		t.Errorf("DockerHost = %q, want %q", cfg.DockerHost, DefaultDockerHost)
	}
	if cfg.DockerMode != DefaultDockerMode {
		t.Errorf("DockerMode = %q, want %q", cfg.DockerMode, DefaultDockerMode)
	}
	if cfg.Source != DefaultSource {
		t.Errorf("Source = %q, want %q", cfg.Source, DefaultSource)
	}
	if cfg.CleanupGracePeriodMin != DefaultCleanupGracePeriodMin {
		t.Errorf("CleanupGracePeriodMin = %d, want %d", cfg.CleanupGracePeriodMin, DefaultCleanupGracePeriodMin)
	}
	if cfg.DNSRoutingMode != DefaultDNSRoutingMode {
		t.Errorf("DNSRoutingMode = %q, want %q", cfg.DNSRoutingMode, DefaultDNSRoutingMode)
	}
	if cfg.MultiProviderSameZone != DefaultMultiProviderSameZone {
		t.Errorf("MultiProviderSameZone = %v, want %v", cfg.MultiProviderSameZone, DefaultMultiProviderSameZone)
	}
	if cfg.DNSDefaultManage != DefaultDNSDefaultManage {
		t.Errorf("DNSDefaultManage = %v, want %v", cfg.DNSDefaultManage, DefaultDNSDefaultManage)
	}
	if cfg.TunnelMode != DefaultTunnelMode {
		t.Errorf("TunnelMode = %q, want %q", cfg.TunnelMode, DefaultTunnelMode)
	}
	if cfg.TunnelDefaultTunnelID != "" {
		t.Errorf("TunnelDefaultTunnelID = %q, want empty", cfg.TunnelDefaultTunnelID)
	}
	if cfg.TunnelDefaultService != "" {
		t.Errorf("TunnelDefaultService = %q, want empty", cfg.TunnelDefaultService)
	}
	if cfg.IPRefreshIntervalMs != DefaultIPRefreshIntervalMs {
		t.Errorf("IPRefreshIntervalMs = %d, want %d", cfg.IPRefreshIntervalMs, DefaultIPRefreshIntervalMs)
	}
	if cfg.StatePath != DefaultStatePath {
		t.Errorf("StatePath = %q, want %q", cfg.StatePath, DefaultStatePath)
	}
	if cfg.OperationMode != DefaultOperationMode {
		t.Errorf("OperationMode = %q, want %q", cfg.OperationMode, DefaultOperationMode)
	}
}

func TestLoadGlobalConfig_CustomValues(t *testing.T) {
	clearGlobalEnv(t)
	defer clearGlobalEnv(t)

	os.Setenv("TRAFEGODNS_LOG_LEVEL", "debug")
	os.Setenv("TRAFEGODNS_LOG_FORMAT", "text")
	os.Setenv("TRAFEGODNS_DRY_RUN", "true")
	os.Setenv("TRAFEGODNS_DEFAULT_TTL", "600")
	os.Setenv("TRAFEGODNS_RECONCILE_INTERVAL", "5m")
	os.Setenv("TRAFEGODNS_HEALTH_PORT", "9090")
	os.Setenv("TRAFEGODNS_DOCKER_HOST", "tcp://localhost:2375")
	os.Setenv("TRAFEGODNS_DOCKER_MODE", "swarm")
	os.Setenv("TRAFEGODNS_SOURCE", "labels")
	os.Setenv("TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN", "15")
	os.Setenv("TRAFEGODNS_DNS_ROUTING_MODE", "round-robin")
	os.Setenv("TRAFEGODNS_DNS_MULTI_PROVIDER_SAME_ZONE", "true")
	os.Setenv("TRAFEGODNS_DNS_DEFAULT_MANAGE", "false")
	os.Setenv("TRAFEGODNS_TUNNEL_MODE", "labeled")
	os.Setenv("TRAFEGODNS_TUNNEL_DEFAULT_TUNNEL_ID", "tunnel-abc")
	os.Setenv("TRAFEGODNS_TUNNEL_DEFAULT_SERVICE_URL", "http://localhost:8081")
	os.Setenv("TRAFEGODNS_IP_REFRESH_INTERVAL_MS", "30000")
	os.Setenv("TRAFEGODNS_OPERATION_MODE", "direct")

	cfg, errs := loadGlobalConfig()

	if len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "text")
	}
	if !cfg.DryRun {
		t.Error("DryRun = false, want true")
	}
	if cfg.DefaultTTL != 600 {
		t.Errorf("DefaultTTL = %d, want %d", cfg.DefaultTTL, 600)
	}
	if cfg.ReconcileInterval != 5*time.Minute {
		t.Errorf("ReconcileInterval = %v, want %v", cfg.ReconcileInterval, 5*time.Minute)
	}
	if cfg.HealthPort != 9090 {
		t.Errorf("HealthPort = %d, want %d", cfg.HealthPort, 9090)
	}
	if cfg.DockerHost != "tcp://localhost:2375" {
		t.Errorf("DockerHost = %q, want %q", cfg.DockerHost, "tcp://localhost:2375")
	}
	if cfg.DockerMode != "swarm" {
		t.Errorf("DockerMode = %q, want %q", cfg.DockerMode, "swarm")
	}
	if cfg.Source != "labels" {
		t.Errorf("Source = %q, want %q", cfg.Source, "labels")
	}
	if cfg.CleanupGracePeriodMin != 15 {
		t.Errorf("CleanupGracePeriodMin = %d, want %d", cfg.CleanupGracePeriodMin, 15)
	}
	if cfg.DNSRoutingMode != "round-robin" {
		t.Errorf("DNSRoutingMode = %q, want %q", cfg.DNSRoutingMode, "round-robin")
	}
	if !cfg.MultiProviderSameZone {
		t.Error("MultiProviderSameZone = false, want true")
	}
	if cfg.DNSDefaultManage {
		t.Error("DNSDefaultManage = true, want false")
	}
	if cfg.TunnelMode != "labeled" {
		t.Errorf("TunnelMode = %q, want %q", cfg.TunnelMode, "labeled")
	}
	if cfg.TunnelDefaultTunnelID != "tunnel-abc" {
		t.Errorf("TunnelDefaultTunnelID = %q, want %q", cfg.TunnelDefaultTunnelID, "tunnel-abc")
	}
	if cfg.TunnelDefaultService != "http://localhost:8081" {
		t.Errorf("TunnelDefaultService = %q, want %q", cfg.TunnelDefaultService, "http://localhost:8081")
	}
	if cfg.IPRefreshIntervalMs != 30000 {
		t.Errorf("IPRefreshIntervalMs = %d, want %d", cfg.IPRefreshIntervalMs, 30000)
	}
	if cfg.OperationMode != "direct" {
		t.Errorf("OperationMode = %q, want %q", cfg.OperationMode, "direct")
	}
}

func TestLoadGlobalConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		value    string
		errMatch string
	}{
		{
			name:     "invalid log level",
			envVar:   "TRAFEGODNS_LOG_LEVEL",
			value:    "verbose",
			errMatch: "LOG_LEVEL",
		},
		{
			name:     "invalid log format",
			envVar:   "TRAFEGODNS_LOG_FORMAT",
			value:    "xml",
			errMatch: "LOG_FORMAT",
		},
		{
			name:     "invalid docker mode",
			envVar:   "TRAFEGODNS_DOCKER_MODE",
			value:    "kubernetes",
			errMatch: "DOCKER_MODE",
		},
		{
			name:     "invalid TTL not a number",
			envVar:   "TRAFEGODNS_DEFAULT_TTL",
			value:    "abc",
			errMatch: "DEFAULT_TTL",
		},
		{
			name:     "invalid TTL negative",
			envVar:   "TRAFEGODNS_DEFAULT_TTL",
			value:    "-1",
			errMatch: "DEFAULT_TTL",
		},
		{
			name:     "invalid reconcile interval",
			envVar:   "TRAFEGODNS_RECONCILE_INTERVAL",
			value:    "not-a-duration",
			errMatch: "RECONCILE_INTERVAL",
		},
		{
			name:     "reconcile interval too short",
			envVar:   "TRAFEGODNS_RECONCILE_INTERVAL",
			value:    "500ms",
			errMatch: "RECONCILE_INTERVAL",
		},
		{
			name:     "invalid health port",
			envVar:   "TRAFEGODNS_HEALTH_PORT",
			value:    "abc",
			errMatch: "HEALTH_PORT",
		},
		{
			name:     "health port out of range",
			envVar:   "TRAFEGODNS_HEALTH_PORT",
			value:    "70000",
			errMatch: "HEALTH_PORT",
		},
		{
			name:     "invalid dns routing mode",
			envVar:   "TRAFEGODNS_DNS_ROUTING_MODE",
			value:    "broadcast",
			errMatch: "DNS_ROUTING_MODE",
		},
		{
			name:     "invalid tunnel mode",
			envVar:   "TRAFEGODNS_TUNNEL_MODE",
			value:    "everywhere",
			errMatch: "TUNNEL_MODE",
		},
		{
			name:     "invalid grace period not a number",
			envVar:   "TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN",
			value:    "soon",
			errMatch: "CLEANUP_GRACE_PERIOD_MIN",
		},
		{
			name:     "invalid grace period negative",
			envVar:   "TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN",
			value:    "-5",
			errMatch: "CLEANUP_GRACE_PERIOD_MIN",
		},
		{
			name:     "invalid IP refresh interval not a number",
			envVar:   "TRAFEGODNS_IP_REFRESH_INTERVAL_MS",
			value:    "fast",
			errMatch: "IP_REFRESH_INTERVAL_MS",
		},
		{
			name:     "IP refresh interval below minimum",
			envVar:   "TRAFEGODNS_IP_REFRESH_INTERVAL_MS",
			value:    "500",
			errMatch: "IP_REFRESH_INTERVAL_MS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearGlobalEnv(t)
			defer clearGlobalEnv(t)

			os.Setenv(tc.envVar, tc.value)

			_, errs := loadGlobalConfig()

			if len(errs) == 0 {
				t.Error("expected validation error, got none")
				return
			}

			found := false
			for _, err := range errs {
				if contains(err, tc.errMatch) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error containing %q, got %v", tc.errMatch, errs)
			}
		})
	}
}

func TestLoadGlobalConfig_CaseInsensitive(t *testing.T) {
	clearGlobalEnv(t)
	defer clearGlobalEnv(t)

	// Set uppercase values that should be normalized to lowercase
	os.Setenv("TRAFEGODNS_LOG_LEVEL", "DEBUG")
	os.Setenv("TRAFEGODNS_LOG_FORMAT", "JSON")
	os.Setenv("TRAFEGODNS_DOCKER_MODE", "SWARM")

	cfg, errs := loadGlobalConfig()

	if len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q (lowercased)", cfg.LogLevel, "debug")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want %q (lowercased)", cfg.LogFormat, "json")
	}
	if cfg.DockerMode != "swarm" {
		t.Errorf("DockerMode = %q, want %q (lowercased)", cfg.DockerMode, "swarm")
	}
}

func TestLoadGlobalConfig_AdoptExisting(t *testing.T) {
	tests := []struct {
		name   string
		envVal string
		want   bool
	}{
		{"default when unset", "", false},
		{"explicit true", "true", true},
		{"explicit false", "false", false},
		{"1 means true", "1", true},
		{"0 means false", "0", false},
		{"yes means true", "yes", true},
		{"no means false", "no", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearGlobalEnv(t)
			defer clearGlobalEnv(t)

			if tt.envVal != "" {
				os.Setenv("TRAFEGODNS_ADOPT_EXISTING", tt.envVal)
			}

			cfg, errs := loadGlobalConfig()
			if len(errs) > 0 {
				t.Errorf("unexpected errors: %v", errs)
			}

			if cfg.AdoptExisting != tt.want {
				t.Errorf("AdoptExisting = %v, want %v", cfg.AdoptExisting, tt.want)
			}
		})
	}
}

// contains checks if s contains substr (case-insensitive for simplicity).
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && containsSubstring(s, substr)))
}

func containsSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
