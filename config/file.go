package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// binding maps one file key onto a Config field. env names the variable
// that takes precedence over the file.
type binding struct {
	key   string
	env   string
	apply func(v *viper.Viper, key string)
}

// LoadFile overlays values from a YAML, TOML or JSON file onto cfg. Keys
// mirror the struct in snake case (check.url, browser.no_sandbox, ...).
// A key is ignored when its environment variable is set.
func LoadFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	for _, b := range bindings(cfg) {
		if !v.IsSet(b.key) || os.Getenv(b.env) != "" {
			continue
		}
		b.apply(v, b.key)
	}
	return nil
}

func bindings(cfg *Config) []binding {
	str := func(dst *string) func(*viper.Viper, string) {
		return func(v *viper.Viper, k string) { *dst = v.GetString(k) }
	}
	dur := func(dst *time.Duration) func(*viper.Viper, string) {
		return func(v *viper.Viper, k string) { *dst = v.GetDuration(k) }
	}
	boolean := func(dst *bool) func(*viper.Viper, string) {
		return func(v *viper.Viper, k string) { *dst = v.GetBool(k) }
	}
	integer := func(dst *int) func(*viper.Viper, string) {
		return func(v *viper.Viper, k string) { *dst = v.GetInt(k) }
	}
	slice := func(dst *[]string) func(*viper.Viper, string) {
		return func(v *viper.Viper, k string) { *dst = v.GetStringSlice(k) }
	}

	return []binding{
		{"check.url", "SMOKE_URL", str(&cfg.Check.URL)},
		{"check.title_pattern", "SMOKE_TITLE_PATTERN", str(&cfg.Check.TitlePattern)},
		{"check.timeout", "SMOKE_TIMEOUT", dur(&cfg.Check.Timeout)},
		{"check.navigation_timeout", "SMOKE_NAV_TIMEOUT", dur(&cfg.Check.NavigationTimeout)},
		{"check.title_timeout", "SMOKE_TITLE_TIMEOUT", dur(&cfg.Check.TitleTimeout)},
		{"check.ready_selector", "SMOKE_READY_SELECTOR", str(&cfg.Check.ReadySelector)},
		{"check.mode", "SMOKE_MODE", str(&cfg.Check.Mode)},
		{"check.headers", "SMOKE_HEADERS", func(v *viper.Viper, k string) {
			cfg.Check.Headers = v.GetStringMapString(k)
		}},

		{"browser.headless", "SMOKE_HEADLESS", boolean(&cfg.Browser.Headless)},
		{"browser.no_sandbox", "SMOKE_NO_SANDBOX", boolean(&cfg.Browser.NoSandbox)},
		{"browser.bin", "SMOKE_BROWSER_BIN", str(&cfg.Browser.BrowserBin)},
		{"browser.proxy", "SMOKE_PROXY", str(&cfg.Browser.Proxy)},
		{"browser.cdp_url", "SMOKE_CDP_URL", str(&cfg.Browser.CDPURL)},
		{"browser.stealth", "SMOKE_STEALTH", boolean(&cfg.Browser.Stealth)},
		{"browser.blocked_resources", "SMOKE_BLOCKED_RESOURCES", slice(&cfg.Browser.BlockedResourceTypes)},

		{"engine.http_timeout", "SMOKE_HTTP_TIMEOUT", dur(&cfg.Engine.HTTPTimeout)},
		{"engine.memory_ttl", "SMOKE_ENGINE_MEMORY_TTL", dur(&cfg.Engine.MemoryTTL)},
		{"engine.escalation_delays", "SMOKE_ESCALATION_DELAYS", func(v *viper.Viper, k string) {
			delays := make([]time.Duration, 0)
			for _, s := range v.GetStringSlice(k) {
				if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
					delays = append(delays, d)
				}
			}
			if len(delays) > 0 {
				cfg.Engine.EscalationDelays = delays
			}
		}},

		{"server.host", "SMOKE_HOST", str(&cfg.Server.Host)},
		{"server.port", "SMOKE_PORT", integer(&cfg.Server.Port)},
		{"server.mode", "SMOKE_SERVER_MODE", str(&cfg.Server.Mode)},
		{"server.max_checks", "SMOKE_MAX_CHECKS", integer(&cfg.Server.MaxConcurrentChecks)},

		{"auth.enabled", "SMOKE_AUTH_ENABLED", boolean(&cfg.Auth.Enabled)},
		{"auth.api_keys", "SMOKE_API_KEYS", slice(&cfg.Auth.APIKeys)},

		{"rate_limit.rps", "SMOKE_RATE_RPS", func(v *viper.Viper, k string) {
			cfg.RateLimit.RequestsPerSecond = v.GetFloat64(k)
		}},
		{"rate_limit.burst", "SMOKE_RATE_BURST", integer(&cfg.RateLimit.Burst)},

		{"cache.max_entries", "SMOKE_CACHE_MAX_ENTRIES", integer(&cfg.Cache.MaxEntries)},

		{"webhook.url", "SMOKE_WEBHOOK_URL", str(&cfg.Webhook.URL)},
		{"webhook.secret", "SMOKE_WEBHOOK_SECRET", str(&cfg.Webhook.Secret)},
		{"webhook.only_failures", "SMOKE_WEBHOOK_ONLY_FAILURES", boolean(&cfg.Webhook.OnlyFailures)},

		{"log.level", "SMOKE_LOG_LEVEL", str(&cfg.Log.Level)},
		{"log.format", "SMOKE_LOG_FORMAT", str(&cfg.Log.Format)},
	}
}
