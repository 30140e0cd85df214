package models

import "time"

// Fetch modes.
const (
	ModeBrowser = "browser"
	ModeHTTP    = "http"
	ModeAuto    = "auto"
)

// Outcome summarises how a check ended.
type Outcome string

const (
	OutcomePass          Outcome = "pass"
	OutcomeTitleMismatch Outcome = "title_mismatch"
	OutcomeUnreachable   Outcome = "unreachable"
	OutcomeLoadTimeout   Outcome = "load_timeout"
	OutcomeError         Outcome = "error"
)

// OutcomeFor maps an error code to the outcome it produces.
func OutcomeFor(code string) Outcome {
	switch code {
	case ErrCodeTitleMismatch:
		return OutcomeTitleMismatch
	case ErrCodeUnreachable:
		return OutcomeUnreachable
	case ErrCodeLoadTimeout:
		return OutcomeLoadTimeout
	default:
		return OutcomeError
	}
}

// CheckRequest is the payload for POST /api/v1/check. Empty fields fall back
// to the server's configured defaults.
type CheckRequest struct {
	// URL is the page to load. Default: the configured target.
	URL string `json:"url,omitempty" binding:"omitempty,url"`

	// TitlePattern is a regex literal (/re/flags) or bare source.
	TitlePattern string `json:"title_pattern,omitempty"`

	// Timeout bounds the whole check, in seconds.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Mode selects the fetch engine: "browser", "http" or "auto".
	Mode string `json:"mode,omitempty" binding:"omitempty,oneof=browser http auto"`

	// ReadySelector is a CSS selector that must be present before the title is read.
	ReadySelector string `json:"ready_selector,omitempty"`

	// Headers are extra request headers sent with the navigation.
	Headers map[string]string `json:"headers,omitempty"`

	// MaxAge allows serving a cached report younger than this many milliseconds.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// CheckReport is the result of a single smoke check.
type CheckReport struct {
	URL        string       `json:"url"`
	FinalURL   string       `json:"final_url,omitempty"`
	Title      string       `json:"title"`
	Pattern    string       `json:"pattern"`
	Passed     bool         `json:"passed"`
	Outcome    Outcome      `json:"outcome"`
	StatusCode int          `json:"status_code,omitempty"`
	EngineUsed string       `json:"engine_used,omitempty"`
	Timing     TimingInfo   `json:"timing"`
	CheckedAt  time.Time    `json:"checked_at"`
	Error      *ErrorDetail `json:"error,omitempty"`

	// CacheStatus is "hit" or "miss" when the caller asked for caching.
	CacheStatus string `json:"cache_status,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent navigating until the page loaded.
	NavigationMs int64 `json:"navigation_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"` // "healthy" or "busy"
	Uptime       string `json:"uptime"`
	ActiveChecks int    `json:"active_checks"`
	MaxChecks    int    `json:"max_checks"`
	Version      string `json:"version"`
}
