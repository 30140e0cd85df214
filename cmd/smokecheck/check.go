package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/smokecheck/checker"
	"github.com/use-agent/smokecheck/config"
	"github.com/use-agent/smokecheck/report"
	"github.com/use-agent/smokecheck/webhook"
)

type checkOptions struct {
	url           string
	title         string
	mode          string
	timeout       time.Duration
	readySelector string
	headers       []string
	output        string
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one smoke check",
		Long: `Run one smoke check and print the report.

Exit status:
  0  title matched
  1  title did not match
  2  target unreachable
  3  load timed out
  4  any other error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runCheck(cmd, cfg, opts.output)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "page to load (default from config: http://localhost:63441)")
	f.StringVar(&opts.title, "title", "", "title pattern, /re/flags or a bare case-insensitive source")
	f.StringVar(&opts.mode, "mode", "", "fetch engine: browser, http or auto")
	f.DurationVar(&opts.timeout, "timeout", 0, "overall check timeout")
	f.StringVar(&opts.readySelector, "ready-selector", "", "CSS selector that must exist before the title is read")
	f.StringArrayVar(&opts.headers, "header", nil, "extra request header as Name=value (repeatable)")
	f.StringVarP(&opts.output, "output", "o", "text", "report format: text or json")
	return cmd
}

// apply overlays flags the user actually set onto cfg.
func (o *checkOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("url") {
		cfg.Check.URL = o.url
	}
	if f.Changed("title") {
		cfg.Check.TitlePattern = o.title
	}
	if f.Changed("mode") {
		cfg.Check.Mode = o.mode
	}
	if f.Changed("timeout") {
		cfg.Check.Timeout = o.timeout
	}
	if f.Changed("ready-selector") {
		cfg.Check.ReadySelector = o.readySelector
	}
	if f.Changed("header") {
		if cfg.Check.Headers == nil {
			cfg.Check.Headers = make(map[string]string)
		}
		for k, v := range config.ParseHeaders(o.headers) {
			cfg.Check.Headers[k] = v
		}
	}
}

func runCheck(cmd *cobra.Command, cfg *config.Config, output string) error {
	var opts []checker.Option
	if cfg.Webhook.URL != "" {
		opts = append(opts, checker.WithNotifier(&webhook.Notifier{
			URL:          cfg.Webhook.URL,
			Secret:       cfg.Webhook.Secret,
			OnlyFailures: cfg.Webhook.OnlyFailures,
		}))
	}

	c := checker.New(cfg, opts...)
	defer c.Close()

	r, _ := c.Run(cmd.Context(), checker.TargetFromConfig(cfg.Check))
	if err := report.Write(cmd.OutOrStdout(), r, output); err != nil {
		return err
	}
	if code := report.ExitCode(r); code != report.ExitPass {
		return &exitError{code: code}
	}
	return nil
}
