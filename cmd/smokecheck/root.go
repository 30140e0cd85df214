package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/use-agent/smokecheck/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stderr: stderr}

	root := &cobra.Command{
		Use:   "smokecheck",
		Short: "Load a web page and assert its title",
		Long: `smokecheck opens a page in a headless browser (or over plain HTTP),
waits for it to load and checks the document title against a pattern.

Examples:
  smokecheck check                                   # http://localhost:63441 vs /lifeline/i
  smokecheck check --url https://example.com --title '/example domain/i'
  smokecheck check --mode http --output json
  smokecheck serve                                   # run the HTTP API`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newCheckCmd(opts), newServeCmd(opts), newVersionCmd())
	return root
}

// load builds the configuration (env, then file, then flags applied by the
// caller) and installs the logger.
func (o *rootOptions) load() (*config.Config, error) {
	cfg := config.Load()
	if o.configPath != "" {
		if err := config.LoadFile(cfg, o.configPath); err != nil {
			return nil, err
		}
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	slog.SetDefault(newLogger(cfg.Log, o.stderr))
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "smokecheck", version)
		},
	}
}
