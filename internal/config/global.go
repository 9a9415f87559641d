package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Global configuration defaults.
const (
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "json"
	DefaultDryRun                = false
	DefaultCleanupOrphans        = true
	DefaultCleanupOnStop         = true
	DefaultOwnershipTracking     = true
	DefaultAdoptExisting         = false
	DefaultTTL                   = 300
	DefaultReconcileInterval     = 60 * time.Second
	DefaultHealthPort            = 8080
	DefaultDockerHost            = "unix:///var/run/docker.sock"
	DefaultDockerMode            = "auto"
	DefaultSource                = "traefik"
	DefaultCleanupGracePeriodMin = 0
	DefaultDNSRoutingMode        = "primary-only"
	DefaultMultiProviderSameZone = false
	DefaultTunnelMode            = "off"
	DefaultIPRefreshIntervalMs   = 5 * 60 * 1000
	DefaultStatePath             = "/var/lib/trafegodns/state.json"
	DefaultOperationMode         = "traefik"
	DefaultDNSDefaultManage      = true
)

// GlobalConfig holds application-wide settings.
// These are parsed from TRAFEGODNS_* environment variables.
type GlobalConfig struct {
	// Logging configuration
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Behavior
	DryRun            bool          // If true, don't make actual DNS changes
	CleanupOrphans    bool          // If true, delete DNS records for removed workloads
	CleanupOnStop     bool          // If true, treat stopped containers as orphans
	OwnershipTracking bool          // If true, use TXT records to track record ownership
	AdoptExisting     bool          // If true, adopt existing DNS records by creating ownership TXT records
	DefaultTTL        int           // Default TTL for records if not specified per-provider
	ReconcileInterval time.Duration // How often to reconcile DNS records
	HealthPort        int           // Port for health/metrics endpoints

	// Docker connection
	DockerHost string // Docker socket path or TCP URL
	DockerMode string // auto, swarm, standalone

	// Source
	Source string // traefik, labels, or custom source name

	// OperationMode selects how the Intent Builder derives hostnames:
	// "traefik" extracts them from Traefik router rule labels via the
	// registered Source Watcher; "direct" reads dns.hostname /
	// dns.domain+dns.subdomain / dns.host.N labels straight off the
	// container, bypassing router discovery entirely.
	OperationMode string

	// Orphan cleanup grace period: minutes a record stays Orphaned before
	// it's actually deleted. 0 preserves the teacher's original immediate-
	// delete behavior.
	CleanupGracePeriodMin int

	// Multi-provider routing (pkg/intent.Router)
	DNSRoutingMode        string // primary-only, round-robin
	MultiProviderSameZone bool   // allow multiple providers to claim the same zone

	// DNSDefaultManage is the Intent Builder's dns_default_manage policy
	// (pkg/intent.Builder.DefaultManage). If false, a container is skipped
	// unless it carries dns.manage=true.
	DNSDefaultManage bool

	// Tunnel ingress (pkg/tunnel)
	TunnelMode            string // off, all, labeled
	TunnelDefaultTunnelID string
	TunnelDefaultService  string
	TunnelAPIToken        string // Cloudflare API token (Bearer auth); supports _FILE suffix
	TunnelAPIKey          string // Cloudflare Global API Key; used with TunnelEmail if token is empty
	TunnelEmail           string
	TunnelAccountID       string

	// IP discovery refresh cadence, in milliseconds.
	IPRefreshIntervalMs int

	// StatePath is where tracked-record/ingress state is persisted between
	// restarts, backing the Orphaned grace-period state machine. Empty
	// disables persistence (orphans are then tracked in memory only).
	StatePath string
}

// loadGlobalConfig loads global configuration from environment variables.
// Returns a list of validation errors (may be empty).
func loadGlobalConfig() (*GlobalConfig, []string) {
	var errs []string

	cfg := &GlobalConfig{
		LogLevel:   getEnv("TRAFEGODNS_LOG_LEVEL"),
		LogFormat:  getEnv("TRAFEGODNS_LOG_FORMAT"),
		DockerHost: getEnv("TRAFEGODNS_DOCKER_HOST"),
		DockerMode: getEnv("TRAFEGODNS_DOCKER_MODE"),
		Source:     getEnv("TRAFEGODNS_SOURCE"),
	}

	// Parse CLEANUP_ON_STOP
	if cleanupOnStopStr := getEnv("TRAFEGODNS_CLEANUP_ON_STOP"); cleanupOnStopStr != "" {
		cfg.CleanupOnStop = parseBool(cleanupOnStopStr, DefaultCleanupOnStop)
	} else {
		cfg.CleanupOnStop = DefaultCleanupOnStop
	}

	// Apply defaults for empty values
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.DockerHost == "" {
		cfg.DockerHost = DefaultDockerHost
	}
	if cfg.DockerMode == "" {
		cfg.DockerMode = DefaultDockerMode
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}

	// Validate log level
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("TRAFEGODNS_LOG_LEVEL: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	// Validate log format
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "json", "text":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("TRAFEGODNS_LOG_FORMAT: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	// Validate Docker mode
	cfg.DockerMode = strings.ToLower(cfg.DockerMode)
	switch cfg.DockerMode {
	case "auto", "swarm", "standalone":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("TRAFEGODNS_DOCKER_MODE: invalid value %q (must be auto, swarm, or standalone)", cfg.DockerMode))
	}

	// Parse DRY_RUN
	if dryRunStr := getEnv("TRAFEGODNS_DRY_RUN"); dryRunStr != "" {
		cfg.DryRun = parseBool(dryRunStr, DefaultDryRun)
	} else {
		cfg.DryRun = DefaultDryRun
	}

	// Parse CLEANUP_ORPHANS
	if cleanupStr := getEnv("TRAFEGODNS_CLEANUP_ORPHANS"); cleanupStr != "" {
		cfg.CleanupOrphans = parseBool(cleanupStr, DefaultCleanupOrphans)
	} else {
		cfg.CleanupOrphans = DefaultCleanupOrphans
	}

	// Parse OWNERSHIP_TRACKING
	if ownershipStr := getEnv("TRAFEGODNS_OWNERSHIP_TRACKING"); ownershipStr != "" {
		cfg.OwnershipTracking = parseBool(ownershipStr, DefaultOwnershipTracking)
	} else {
		cfg.OwnershipTracking = DefaultOwnershipTracking
	}

	// Parse ADOPT_EXISTING
	if adoptStr := getEnv("TRAFEGODNS_ADOPT_EXISTING"); adoptStr != "" {
		cfg.AdoptExisting = parseBool(adoptStr, DefaultAdoptExisting)
	} else {
		cfg.AdoptExisting = DefaultAdoptExisting
	}

	// Parse DEFAULT_TTL
	if ttlStr := getEnv("TRAFEGODNS_DEFAULT_TTL"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRAFEGODNS_DEFAULT_TTL: invalid integer %q", ttlStr))
		} else if ttl < 1 {
			errs = append(errs, "TRAFEGODNS_DEFAULT_TTL: must be at least 1")
		} else {
			cfg.DefaultTTL = ttl
		}
	} else {
		cfg.DefaultTTL = DefaultTTL
	}

	// Parse RECONCILE_INTERVAL (supports Go duration format: 60s, 5m, etc.)
	if intervalStr := getEnv("TRAFEGODNS_RECONCILE_INTERVAL"); intervalStr != "" {
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRAFEGODNS_RECONCILE_INTERVAL: invalid duration %q (use format like 60s, 5m)", intervalStr))
		} else if interval < time.Second {
			errs = append(errs, "TRAFEGODNS_RECONCILE_INTERVAL: must be at least 1s")
		} else {
			cfg.ReconcileInterval = interval
		}
	} else {
		cfg.ReconcileInterval = DefaultReconcileInterval
	}

	// Parse HEALTH_PORT
	if portStr := getEnv("TRAFEGODNS_HEALTH_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRAFEGODNS_HEALTH_PORT: invalid integer %q", portStr))
		} else if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("TRAFEGODNS_HEALTH_PORT: must be between 1 and 65535, got %d", port))
		} else {
			cfg.HealthPort = port
		}
	} else {
		cfg.HealthPort = DefaultHealthPort
	}

	// Parse CLEANUP_GRACE_PERIOD_MIN
	if graceStr := getEnv("TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN"); graceStr != "" {
		grace, err := strconv.Atoi(graceStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN: invalid integer %q", graceStr))
		} else if grace < 0 {
			errs = append(errs, "TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN: must be non-negative")
		} else {
			cfg.CleanupGracePeriodMin = grace
		}
	} else {
		cfg.CleanupGracePeriodMin = DefaultCleanupGracePeriodMin
	}

	// Parse DNS_ROUTING_MODE
	cfg.DNSRoutingMode = getEnv("TRAFEGODNS_DNS_ROUTING_MODE")
	if cfg.DNSRoutingMode == "" {
		cfg.DNSRoutingMode = DefaultDNSRoutingMode
	}
	cfg.DNSRoutingMode = strings.ToLower(cfg.DNSRoutingMode)
	switch cfg.DNSRoutingMode {
	case "primary-only", "round-robin":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("TRAFEGODNS_DNS_ROUTING_MODE: invalid value %q (must be primary-only or round-robin)", cfg.DNSRoutingMode))
	}

	// Parse DNS_MULTI_PROVIDER_SAME_ZONE
	if sameZoneStr := getEnv("TRAFEGODNS_DNS_MULTI_PROVIDER_SAME_ZONE"); sameZoneStr != "" {
		cfg.MultiProviderSameZone = parseBool(sameZoneStr, DefaultMultiProviderSameZone)
	} else {
		cfg.MultiProviderSameZone = DefaultMultiProviderSameZone
	}

	// Parse TUNNEL_MODE
	cfg.TunnelMode = getEnv("TRAFEGODNS_TUNNEL_MODE")
	if cfg.TunnelMode == "" {
		cfg.TunnelMode = DefaultTunnelMode
	}
	cfg.TunnelMode = strings.ToLower(cfg.TunnelMode)
	switch cfg.TunnelMode {
	case "off", "all", "labeled":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("TRAFEGODNS_TUNNEL_MODE: invalid value %q (must be off, all, or labeled)", cfg.TunnelMode))
	}

	cfg.TunnelDefaultTunnelID = getEnv("TRAFEGODNS_TUNNEL_DEFAULT_TUNNEL_ID")
	cfg.TunnelDefaultService = getEnv("TRAFEGODNS_TUNNEL_DEFAULT_SERVICE_URL")
	cfg.TunnelAPIToken = getEnvOrFile("TRAFEGODNS_TUNNEL_API_TOKEN", "TRAFEGODNS_TUNNEL_API_TOKEN_FILE")
	cfg.TunnelAPIKey = getEnvOrFile("TRAFEGODNS_TUNNEL_API_KEY", "TRAFEGODNS_TUNNEL_API_KEY_FILE")
	cfg.TunnelEmail = getEnv("TRAFEGODNS_TUNNEL_EMAIL")
	cfg.TunnelAccountID = getEnv("TRAFEGODNS_TUNNEL_ACCOUNT_ID")

	// Parse IP_REFRESH_INTERVAL_MS
	if refreshStr := getEnv("TRAFEGODNS_IP_REFRESH_INTERVAL_MS"); refreshStr != "" {
		refresh, err := strconv.Atoi(refreshStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRAFEGODNS_IP_REFRESH_INTERVAL_MS: invalid integer %q", refreshStr))
		} else if refresh < 1000 {
			errs = append(errs, "TRAFEGODNS_IP_REFRESH_INTERVAL_MS: must be at least 1000")
		} else {
			cfg.IPRefreshIntervalMs = refresh
		}
	} else {
		cfg.IPRefreshIntervalMs = DefaultIPRefreshIntervalMs
	}

	// Parse STATE_PATH
	cfg.StatePath = getEnv("TRAFEGODNS_STATE_PATH")
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}

	// Parse DNS_DEFAULT_MANAGE
	if manageStr := getEnv("TRAFEGODNS_DNS_DEFAULT_MANAGE"); manageStr != "" {
		cfg.DNSDefaultManage = parseBool(manageStr, DefaultDNSDefaultManage)
	} else {
		cfg.DNSDefaultManage = DefaultDNSDefaultManage
	}

	// Parse OPERATION_MODE
	cfg.OperationMode = getEnv("TRAFEGODNS_OPERATION_MODE")
	if cfg.OperationMode == "" {
		cfg.OperationMode = DefaultOperationMode
	}
	cfg.OperationMode = strings.ToLower(cfg.OperationMode)
	switch cfg.OperationMode {
	case "traefik", "direct":
		// Valid
	default:
		errs = append(errs, fmt.Sprintf("TRAFEGODNS_OPERATION_MODE: invalid value %q (must be traefik or direct)", cfg.OperationMode))
	}

	return cfg, errs
}
