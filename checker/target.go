package checker

import (
	"fmt"
	"time"

	"github.com/use-agent/smokecheck/config"
	"github.com/use-agent/smokecheck/models"
)

// Target describes one smoke check: where to go and what title to expect.
type Target struct {
	URL               string
	Pattern           string
	Mode              string
	Timeout           time.Duration
	NavigationTimeout time.Duration
	TitleTimeout      time.Duration
	ReadySelector     string
	Headers           map[string]string
}

// TargetFromConfig builds the default target from configuration.
func TargetFromConfig(c config.CheckConfig) Target {
	return Target{
		URL:               c.URL,
		Pattern:           c.TitlePattern,
		Mode:              c.Mode,
		Timeout:           c.Timeout,
		NavigationTimeout: c.NavigationTimeout,
		TitleTimeout:      c.TitleTimeout,
		ReadySelector:     c.ReadySelector,
		Headers:           c.Headers,
	}
}

// WithRequest returns a copy of t with the non-empty fields of req applied.
func (t Target) WithRequest(req *models.CheckRequest) Target {
	if req.URL != "" {
		t.URL = req.URL
	}
	if req.TitlePattern != "" {
		t.Pattern = req.TitlePattern
	}
	if req.Mode != "" {
		t.Mode = req.Mode
	}
	if req.Timeout > 0 {
		t.Timeout = time.Duration(req.Timeout) * time.Second
	}
	if req.ReadySelector != "" {
		t.ReadySelector = req.ReadySelector
	}
	if len(req.Headers) > 0 {
		merged := make(map[string]string, len(t.Headers)+len(req.Headers))
		for k, v := range t.Headers {
			merged[k] = v
		}
		for k, v := range req.Headers {
			merged[k] = v
		}
		t.Headers = merged
	}
	return t
}

// validate checks everything that does not need the network.
func (t Target) validate() error {
	if err := config.ValidateTarget(t.URL); err != nil {
		return err
	}
	if err := config.ValidateSelector(t.ReadySelector); err != nil {
		return err
	}
	if err := config.ValidateMode(t.Mode); err != nil {
		return err
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
