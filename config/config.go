package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/smokecheck/matcher"
	"github.com/use-agent/smokecheck/models"
)

// Config holds all application configuration.
type Config struct {
	Check     CheckConfig
	Browser   BrowserConfig
	Engine    EngineConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// CheckConfig describes the default smoke check target.
type CheckConfig struct {
	// URL is the page to load.
	URL string // default: "http://localhost:63441"

	// TitlePattern is a regex literal (/re/flags) or a bare source.
	TitlePattern string // default: "/lifeline/i"

	// Timeout bounds the entire check.
	Timeout time.Duration // default: 30s

	// NavigationTimeout is the max time for navigation and load.
	NavigationTimeout time.Duration // default: 15s

	// TitleTimeout is how long the title may take to match after load.
	TitleTimeout time.Duration // default: 5s

	// ReadySelector, when set, must match an element before the title is read.
	ReadySelector string

	// Mode is "browser", "http" or "auto".
	Mode string // default: "browser"

	// Headers are extra request headers.
	Headers map[string]string
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for browser traffic.
	Proxy string

	// CDPURL attaches to a running browser instead of launching one.
	CDPURL string

	// Stealth masks navigator.webdriver and similar automation hints.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// EngineConfig controls engine escalation in auto mode.
type EngineConfig struct {
	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 2s]

	// HTTPTimeout is the deadline for the plain HTTP engine.
	HTTPTimeout time.Duration // default: 5s

	// MemoryTTL is how long a winning engine is remembered per host.
	MemoryTTL time.Duration // default: 1h
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8090
	Mode string // "debug", "release", "test"; default: "release"

	// MaxConcurrentChecks bounds the number of browsers running at once.
	MaxConcurrentChecks int // default: 2
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the report cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached reports.
	MaxEntries int // default: 256
}

// WebhookConfig controls report delivery.
type WebhookConfig struct {
	URL          string
	Secret       string
	OnlyFailures bool // default: true
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Check: CheckConfig{
			URL:               envOr("SMOKE_URL", "http://localhost:63441"),
			TitlePattern:      envOr("SMOKE_TITLE_PATTERN", "/lifeline/i"),
			Timeout:           envDurationOr("SMOKE_TIMEOUT", 30*time.Second),
			NavigationTimeout: envDurationOr("SMOKE_NAV_TIMEOUT", 15*time.Second),
			TitleTimeout:      envDurationOr("SMOKE_TITLE_TIMEOUT", 5*time.Second),
			ReadySelector:     os.Getenv("SMOKE_READY_SELECTOR"),
			Mode:              envOr("SMOKE_MODE", models.ModeBrowser),
			Headers:           envMapOr("SMOKE_HEADERS", nil),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("SMOKE_HEADLESS", true),
			NoSandbox:  envBoolOr("SMOKE_NO_SANDBOX", false),
			BrowserBin: os.Getenv("SMOKE_BROWSER_BIN"),
			Proxy:      os.Getenv("SMOKE_PROXY"),
			CDPURL:     os.Getenv("SMOKE_CDP_URL"),
			Stealth:    envBoolOr("SMOKE_STEALTH", false),
			BlockedResourceTypes: envSliceOr("SMOKE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Engine: EngineConfig{
			EscalationDelays: envDurationSliceOr("SMOKE_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second}),
			HTTPTimeout:      envDurationOr("SMOKE_HTTP_TIMEOUT", 5*time.Second),
			MemoryTTL:        envDurationOr("SMOKE_ENGINE_MEMORY_TTL", time.Hour),
		},
		Server: ServerConfig{
			Host:                envOr("SMOKE_HOST", "0.0.0.0"),
			Port:                envIntOr("SMOKE_PORT", 8090),
			Mode:                envOr("SMOKE_SERVER_MODE", "release"),
			MaxConcurrentChecks: envIntOr("SMOKE_MAX_CHECKS", 2),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SMOKE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SMOKE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SMOKE_RATE_RPS", 1.0),
			Burst:             envIntOr("SMOKE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SMOKE_CACHE_MAX_ENTRIES", 256),
		},
		Webhook: WebhookConfig{
			URL:          os.Getenv("SMOKE_WEBHOOK_URL"),
			Secret:       os.Getenv("SMOKE_WEBHOOK_SECRET"),
			OnlyFailures: envBoolOr("SMOKE_WEBHOOK_ONLY_FAILURES", true),
		},
		Log: LogConfig{
			Level:  envOr("SMOKE_LOG_LEVEL", "info"),
			Format: envOr("SMOKE_LOG_FORMAT", "text"),
		},
	}
}

// Validate checks the default check target and the limits that would
// otherwise fail late, during a check.
func (c *Config) Validate() error {
	if err := ValidateTarget(c.Check.URL); err != nil {
		return err
	}
	if _, err := matcher.Compile(c.Check.TitlePattern); err != nil {
		return err
	}
	if err := ValidateSelector(c.Check.ReadySelector); err != nil {
		return err
	}
	if err := ValidateMode(c.Check.Mode); err != nil {
		return err
	}
	if c.Check.Timeout <= 0 || c.Check.NavigationTimeout <= 0 || c.Check.TitleTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.Server.MaxConcurrentChecks < 1 {
		return fmt.Errorf("config: max concurrent checks must be at least 1")
	}
	return nil
}

// ValidateTarget requires an absolute http or https URL with a host.
func ValidateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: url %q must be absolute http(s)", raw)
	}
	return nil
}

// ValidateSelector accepts an empty selector or a valid CSS selector.
func ValidateSelector(sel string) error {
	if sel == "" {
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("config: invalid ready selector %q: %w", sel, err)
	}
	return nil
}

// ValidateMode accepts the supported fetch modes.
func ValidateMode(mode string) error {
	switch mode {
	case models.ModeBrowser, models.ModeHTTP, models.ModeAuto:
		return nil
	}
	return fmt.Errorf("config: unknown mode %q (want browser, http or auto)", mode)
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "k=v,k2=v2". Entries without "=" are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return ParseHeaders(strings.Split(v, ","))
}

// ParseHeaders turns "Name=value" pairs into a map. Entries without "=" or
// with an empty name are skipped.
func ParseHeaders(pairs []string) map[string]string {
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		result[k] = strings.TrimSpace(val)
	}
	return result
}
