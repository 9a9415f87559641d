package traefik

import (
	"log/slog"
	"regexp"
	"strings"
)

// hostRegex matches Host(`hostname`) patterns in Traefik v2/v3 router rules.
// Captures the hostname inside the backticks.
var hostRegex = regexp.MustCompile(`Host\(` + "`" + `([^` + "`" + `]+)` + "`" + `\)`)

// hostV1Regex matches the Traefik v1 Host:a.com,b.com frontend rule form.
// Captures the comma-separated hostname list.
var hostV1Regex = regexp.MustCompile(`Host:\s*([^;]+)`)

// routerLabelPrefix is the prefix for Traefik v2/v3 HTTP router labels.
const routerLabelPrefix = "traefik.http.routers."

// routerRuleSuffix is the suffix for router rule labels.
const routerRuleSuffix = ".rule"

// frontendLabelPrefix is the prefix for Traefik v1 frontend labels.
const frontendLabelPrefix = "traefik.frontend."

// frontendRuleSuffix is the suffix for v1 frontend rule labels.
const frontendRuleSuffix = ".rule"

// frontendRuleLabel is the bare v1 label used when a container defines a
// single, unnamed frontend (traefik.frontend.rule with no name segment).
const frontendRuleLabel = "traefik.frontend.rule"

// HostnameExtraction represents a hostname extracted from a specific router.
type HostnameExtraction struct {
	Hostname string // The extracted hostname
	Router   string // The router name (e.g., "myapp")
}

// Parser extracts hostnames from Traefik labels.
type Parser struct {
	logger *slog.Logger
}

// ParserOption is a functional option for configuring the Parser.
type ParserOption func(*Parser)

// WithParserLogger sets a custom logger.
func WithParserLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a new Traefik label parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ExtractHostnames extracts all hostnames from Traefik labels with router context.
// Returns a slice of extractions that include both hostname and router name.
func (p *Parser) ExtractHostnames(labels map[string]string) []HostnameExtraction {
	seen := make(map[string]struct{})
	var extractions []HostnameExtraction

	for key, value := range labels {
		router, rule, ok := routerRule(key, value)
		if !ok {
			continue
		}

		p.logger.Debug("parsing traefik rule",
			slog.String("router", router),
			slog.String("rule", rule),
		)

		hosts := extractHostsFromRule(rule)
		for _, hostname := range hosts {
			// Deduplicate by hostname (first occurrence wins)
			if _, exists := seen[hostname]; !exists {
				seen[hostname] = struct{}{}
				extractions = append(extractions, HostnameExtraction{
					Hostname: hostname,
					Router:   router,
				})
				p.logger.Debug("extracted hostname",
					slog.String("hostname", hostname),
					slog.String("router", router),
				)
			}
		}
	}

	p.logger.Debug("extraction complete",
		slog.Int("count", len(extractions)),
	)

	return extractions
}

// ExtractHosts extracts all hostnames from Traefik labels.
// Returns a deduplicated slice of hostname strings.
// This is a convenience method that discards router information.
func (p *Parser) ExtractHosts(labels map[string]string) []string {
	extractions := p.ExtractHostnames(labels)
	hosts := make([]string, len(extractions))
	for i, e := range extractions {
		hosts[i] = e.Hostname
	}
	return hosts
}

// extractRouterName extracts the v2/v3 router name from a Traefik label key.
// Returns empty string if this is not a router rule label.
//
// Examples:
//   - "traefik.http.routers.myapp.rule" -> "myapp"
//   - "traefik.http.routers.myapp.entrypoints" -> ""
//   - "traefik.enable" -> ""
func extractRouterName(key string) string {
	// Must start with prefix and end with suffix
	if !strings.HasPrefix(key, routerLabelPrefix) {
		return ""
	}
	if !strings.HasSuffix(key, routerRuleSuffix) {
		return ""
	}

	// Extract the router name between prefix and suffix
	// traefik.http.routers.<name>.rule
	withoutPrefix := strings.TrimPrefix(key, routerLabelPrefix)
	withoutSuffix := strings.TrimSuffix(withoutPrefix, routerRuleSuffix)

	// Handle edge case: traefik.http.routers..rule (empty name)
	if withoutSuffix == "" {
		return ""
	}

	return withoutSuffix
}

// extractFrontendNameV1 extracts the v1 frontend name from a Traefik label
// key. Returns "" if key isn't a frontend rule label. The bare
// "traefik.frontend.rule" label (no name segment, used by containers that
// only ever run a single frontend) maps to the frontend name "default".
//
// Examples:
//   - "traefik.frontend.rule" -> "default"
//   - "traefik.frontend.myapp.rule" -> "myapp"
//   - "traefik.frontend.myapp.priority" -> ""
func extractFrontendNameV1(key string) string {
	if key == frontendRuleLabel {
		return "default"
	}
	if !strings.HasPrefix(key, frontendLabelPrefix) {
		return ""
	}
	if !strings.HasSuffix(key, frontendRuleSuffix) {
		return ""
	}
	withoutPrefix := strings.TrimPrefix(key, frontendLabelPrefix)
	name := strings.TrimSuffix(withoutPrefix, frontendRuleSuffix)
	if name == "" {
		return ""
	}
	return name
}

// routerRule resolves a label key/value pair to its router (or frontend)
// name and rule string, trying the v2/v3 router form first and falling
// back to the v1 frontend form. ok is false when key isn't a rule label.
func routerRule(key, value string) (router, rule string, ok bool) {
	if router := extractRouterName(key); router != "" {
		return router, value, true
	}
	if router := extractFrontendNameV1(key); router != "" {
		return router, value, true
	}
	return "", "", false
}

// extractHostsFromRule extracts all hostnames from a Traefik rule string.
// Handles v2/v3 rule formats:
//   - Host(`example.com`)
//   - Host(`a.com`) || Host(`b.com`)
//   - Host(`example.com`) && PathPrefix(`/api`)
//   - (Host(`a.com`) || Host(`b.com`)) && PathPrefix(`/`)
//
// and the v1 frontend rule form:
//   - Host:example.com
//   - Host:a.example.com,b.example.com
//   - Host:example.com;PathPrefix:/api
func extractHostsFromRule(rule string) []string {
	seen := make(map[string]struct{})
	var hosts []string

	add := func(hostname string) {
		hostname = strings.TrimSpace(hostname)
		if hostname == "" {
			return
		}
		if _, exists := seen[hostname]; !exists {
			seen[hostname] = struct{}{}
			hosts = append(hosts, hostname)
		}
	}

	for _, match := range hostRegex.FindAllStringSubmatch(rule, -1) {
		if len(match) < 2 {
			continue
		}
		add(match[1])
	}

	for _, match := range hostV1Regex.FindAllStringSubmatch(rule, -1) {
		if len(match) < 2 {
			continue
		}
		for _, hostname := range strings.Split(match[1], ",") {
			add(hostname)
		}
	}

	return hosts
}

// ExtractHostsFromRule extracts hostnames from a single rule string.
// This is a convenience function for parsing rules without a Parser instance.
func ExtractHostsFromRule(rule string) []string {
	return extractHostsFromRule(rule)
}
