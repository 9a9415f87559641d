// Package config handles loading and validation of TrafegoDNS configuration.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/trafegodns/trafegodns/pkg/provider"
	"github.com/trafegodns/trafegodns/pkg/source"
)

// loadFromFile loads configuration from a YAML file and converts it to runtime types.
// Returns nil values if no file is configured or file doesn't exist.
func loadFromFile(path string) (*GlobalConfig, []*ProviderInstanceConfig, *SourceConfig, []string) {
	if path == "" {
		return nil, nil, nil, nil
	}

	fileCfg, err := LoadFile(path)
	if err != nil {
		return nil, nil, nil, []string{"config file: " + err.Error()}
	}

	slog.Info("loaded configuration from file", slog.String("path", path))

	var errs []string

	// Convert to runtime types
	global := fileCfg.ToGlobalConfig()

	// Convert providers
	var providers []*ProviderInstanceConfig
	for _, fp := range fileCfg.Providers {
		p, pErrs := convertFileProvider(fp, global.DefaultTTL)
		providers = append(providers, p)
		errs = append(errs, pErrs...)
	}

	// Convert sources
	sources := convertFileSources(fileCfg.Sources)

	return global, providers, sources, errs
}

// convertFileProvider converts a FileProviderConfig to ProviderInstanceConfig.
func convertFileProvider(fp FileProviderConfig, defaultTTL int) (*ProviderInstanceConfig, []string) {
	var errs []string

	cfg := &ProviderInstanceConfig{
		Name:                fp.Name,
		TypeName:            strings.ToLower(fp.Type),
		Domains:             fp.Domains,
		DomainsRegex:        fp.DomainsRegex,
		ExcludeDomains:      fp.ExcludeDomains,
		ExcludeDomainsRegex: fp.ExcludeDomainsRegex,
		ProviderConfig:      make(map[string]string),
	}

	// Validate name
	if cfg.Name == "" {
		errs = append(errs, "provider: name is required")
	}

	// Validate type
	if cfg.TypeName == "" {
		errs = append(errs, "provider "+cfg.Name+": type is required")
	}

	// Record type
	recordTypeStr := strings.ToUpper(fp.RecordType)
	switch recordTypeStr {
	case "", "A":
		cfg.RecordType = provider.RecordTypeA
	case "AAAA":
		cfg.RecordType = provider.RecordTypeAAAA
	case "CNAME":
		cfg.RecordType = provider.RecordTypeCNAME
	default:
		errs = append(errs, "provider "+cfg.Name+": invalid record_type "+fp.RecordType)
	}

	// Target
	cfg.Target = fp.Target
	if cfg.Target == "" {
		errs = append(errs, "provider "+cfg.Name+": target is required")
	}

	// TTL
	if fp.TTL > 0 {
		cfg.TTL = fp.TTL
	} else {
		cfg.TTL = defaultTTL
	}

	// Mode
	if fp.Mode != "" {
		mode, err := provider.ParseOperationalMode(fp.Mode)
		if err != nil {
			errs = append(errs, "provider "+cfg.Name+": "+err.Error())
		} else {
			cfg.Mode = mode
		}
	} else {
		cfg.Mode = provider.ModeManaged
	}

	// Domains validation
	if len(fp.Domains) == 0 && len(fp.DomainsRegex) == 0 {
		errs = append(errs, "provider "+cfg.Name+": domains or domains_regex is required")
	}
	if len(fp.Domains) > 0 && len(fp.DomainsRegex) > 0 {
		errs = append(errs, "provider "+cfg.Name+": cannot set both domains and domains_regex")
	}
	if len(fp.ExcludeDomains) > 0 && len(fp.ExcludeDomainsRegex) > 0 {
		errs = append(errs, "provider "+cfg.Name+": cannot set both exclude_domains and exclude_domains_regex")
	}

	// Provider-specific config
	for k, v := range fp.Config {
		// Normalize keys to uppercase for consistency with env var loading
		cfg.ProviderConfig[strings.ToUpper(k)] = v
	}

	return cfg, errs
}

// convertFileSources converts FileSourceConfig list to SourceConfig.
func convertFileSources(fileSources []FileSourceConfig) *SourceConfig {
	if len(fileSources) == 0 {
		return nil
	}

	cfg := &SourceConfig{
		Names:     make([]string, 0, len(fileSources)),
		Instances: make([]*SourceInstanceConfig, 0, len(fileSources)),
	}

	for _, fs := range fileSources {
		cfg.Names = append(cfg.Names, fs.Name)

		inst := &SourceInstanceConfig{
			Name:          fs.Name,
			FileDiscovery: source.DefaultFileDiscoveryConfig(),
		}

		if fs.FileDiscovery != nil {
			inst.FileDiscovery.FilePaths = fs.FileDiscovery.Paths
			if fs.FileDiscovery.Pattern != "" {
				inst.FileDiscovery.FilePattern = fs.FileDiscovery.Pattern
			}
			if fs.FileDiscovery.PollInterval != "" {
				if interval, err := time.ParseDuration(fs.FileDiscovery.PollInterval); err == nil && interval >= time.Second {
					inst.FileDiscovery.PollInterval = interval
				}
			}
			if fs.FileDiscovery.WatchMethod != "" {
				inst.FileDiscovery.WatchMethod = strings.ToLower(fs.FileDiscovery.WatchMethod)
			}
		}

		cfg.Instances = append(cfg.Instances, inst)
	}

	return cfg
}

// mergeGlobalConfig merges environment variable overrides into a GlobalConfig.
// Environment variables always take precedence over file config.
func mergeGlobalConfig(base *GlobalConfig) (*GlobalConfig, []string) {
	if base == nil {
		// No file config, load everything from env vars
		return loadGlobalConfig()
	}

	var errs []string

	// Start with file values, override with env vars if set
	cfg := *base // Copy the struct

	// Override with env vars if explicitly set
	if v := getEnv("TRAFEGODNS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
		switch cfg.LogLevel {
		case "debug", "info", "warn", "error":
			// Valid
		default:
			errs = append(errs, "TRAFEGODNS_LOG_LEVEL: invalid value (must be debug, info, warn, or error)")
		}
	}

	if v := getEnv("TRAFEGODNS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
		switch cfg.LogFormat {
		case "json", "text":
			// Valid
		default:
			errs = append(errs, "TRAFEGODNS_LOG_FORMAT: invalid value (must be json or text)")
		}
	}

	if v := getEnv("TRAFEGODNS_DOCKER_HOST"); v != "" {
		cfg.DockerHost = v
	}

	if v := getEnv("TRAFEGODNS_DOCKER_MODE"); v != "" {
		cfg.DockerMode = strings.ToLower(v)
		switch cfg.DockerMode {
		case "auto", "swarm", "standalone":
			// Valid
		default:
			errs = append(errs, "TRAFEGODNS_DOCKER_MODE: invalid value (must be auto, swarm, or standalone)")
		}
	}

	if v := getEnv("TRAFEGODNS_DRY_RUN"); v != "" {
		cfg.DryRun = parseBool(v, cfg.DryRun)
	}

	if v := getEnv("TRAFEGODNS_CLEANUP_ORPHANS"); v != "" {
		cfg.CleanupOrphans = parseBool(v, cfg.CleanupOrphans)
	}

	if v := getEnv("TRAFEGODNS_CLEANUP_ON_STOP"); v != "" {
		cfg.CleanupOnStop = parseBool(v, cfg.CleanupOnStop)
	}

	if v := getEnv("TRAFEGODNS_OWNERSHIP_TRACKING"); v != "" {
		cfg.OwnershipTracking = parseBool(v, cfg.OwnershipTracking)
	}

	if v := getEnv("TRAFEGODNS_ADOPT_EXISTING"); v != "" {
		cfg.AdoptExisting = parseBool(v, cfg.AdoptExisting)
	}

	if v := getEnv("TRAFEGODNS_DEFAULT_TTL"); v != "" {
		if ttl, err := parseIntEnv(v); err == nil && ttl >= 1 {
			cfg.DefaultTTL = ttl
		} else {
			errs = append(errs, "TRAFEGODNS_DEFAULT_TTL: invalid or negative integer")
		}
	}

	if v := getEnv("TRAFEGODNS_RECONCILE_INTERVAL"); v != "" {
		if interval, err := time.ParseDuration(v); err == nil && interval >= time.Second {
			cfg.ReconcileInterval = interval
		} else {
			errs = append(errs, "TRAFEGODNS_RECONCILE_INTERVAL: invalid duration")
		}
	}

	if v := getEnv("TRAFEGODNS_HEALTH_PORT"); v != "" {
		if port, err := parseIntEnv(v); err == nil && port >= 1 && port <= 65535 {
			cfg.HealthPort = port
		} else {
			errs = append(errs, "TRAFEGODNS_HEALTH_PORT: invalid port number")
		}
	}

	if v := getEnv("TRAFEGODNS_SOURCE"); v != "" {
		cfg.Source = v
	}

	if v := getEnv("TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN"); v != "" {
		if grace, err := parseIntEnv(v); err == nil && grace >= 0 {
			cfg.CleanupGracePeriodMin = grace
		} else {
			errs = append(errs, "TRAFEGODNS_CLEANUP_GRACE_PERIOD_MIN: invalid or negative integer")
		}
	}

	if v := getEnv("TRAFEGODNS_DNS_ROUTING_MODE"); v != "" {
		cfg.DNSRoutingMode = strings.ToLower(v)
		switch cfg.DNSRoutingMode {
		case "primary-only", "round-robin":
			// Valid
		default:
			errs = append(errs, "TRAFEGODNS_DNS_ROUTING_MODE: invalid value (must be primary-only or round-robin)")
		}
	}

	if v := getEnv("TRAFEGODNS_DNS_MULTI_PROVIDER_SAME_ZONE"); v != "" {
		cfg.MultiProviderSameZone = parseBool(v, cfg.MultiProviderSameZone)
	}

	if v := getEnv("TRAFEGODNS_DNS_DEFAULT_MANAGE"); v != "" {
		cfg.DNSDefaultManage = parseBool(v, cfg.DNSDefaultManage)
	}

	if v := getEnv("TRAFEGODNS_TUNNEL_MODE"); v != "" {
		cfg.TunnelMode = strings.ToLower(v)
		switch cfg.TunnelMode {
		case "off", "all", "labeled":
			// Valid
		default:
			errs = append(errs, "TRAFEGODNS_TUNNEL_MODE: invalid value (must be off, all, or labeled)")
		}
	}

	if v := getEnv("TRAFEGODNS_TUNNEL_DEFAULT_TUNNEL_ID"); v != "" {
		cfg.TunnelDefaultTunnelID = v
	}

	if v := getEnv("TRAFEGODNS_TUNNEL_DEFAULT_SERVICE_URL"); v != "" {
		cfg.TunnelDefaultService = v
	}

	if v := getEnvOrFile("TRAFEGODNS_TUNNEL_API_TOKEN", "TRAFEGODNS_TUNNEL_API_TOKEN_FILE"); v != "" {
		cfg.TunnelAPIToken = v
	}

	if v := getEnvOrFile("TRAFEGODNS_TUNNEL_API_KEY", "TRAFEGODNS_TUNNEL_API_KEY_FILE"); v != "" {
		cfg.TunnelAPIKey = v
	}

	if v := getEnv("TRAFEGODNS_TUNNEL_EMAIL"); v != "" {
		cfg.TunnelEmail = v
	}

	if v := getEnv("TRAFEGODNS_TUNNEL_ACCOUNT_ID"); v != "" {
		cfg.TunnelAccountID = v
	}

	if v := getEnv("TRAFEGODNS_IP_REFRESH_INTERVAL_MS"); v != "" {
		if refresh, err := parseIntEnv(v); err == nil && refresh >= 1000 {
			cfg.IPRefreshIntervalMs = refresh
		} else {
			errs = append(errs, "TRAFEGODNS_IP_REFRESH_INTERVAL_MS: invalid integer or below minimum of 1000")
		}
	}

	if v := getEnv("TRAFEGODNS_STATE_PATH"); v != "" {
		cfg.StatePath = v
	}

	if v := getEnv("TRAFEGODNS_OPERATION_MODE"); v != "" {
		cfg.OperationMode = strings.ToLower(v)
		switch cfg.OperationMode {
		case "traefik", "direct":
			// Valid
		default:
			errs = append(errs, "TRAFEGODNS_OPERATION_MODE: invalid value (must be traefik or direct)")
		}
	}

	return &cfg, errs
}

// parseIntEnv parses a decimal integer from a string, accepting a leading minus sign.
func parseIntEnv(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			if c == '-' && n == 0 {
				continue
			}
			return 0, errInvalidInt
		}
		n = n*10 + int(c-'0')
	}
	if len(s) > 0 && s[0] == '-' {
		n = -n
	}
	return n, nil
}

var errInvalidInt = &ValidationError{Errors: []string{"invalid integer"}}
