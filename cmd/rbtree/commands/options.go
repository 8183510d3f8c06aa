// Package commands implements CLI command handlers for rbtree.
package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/redblack/pkg/config"
	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/version"
)

// ErrAxiomViolation is returned when a tree fails the red-black checks.
var ErrAxiomViolation = errors.New("red-black axioms violated")

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool
	LogJSON    bool
	NoColor    bool
}

// setup loads the configuration and starts the observability providers.
// Flags take precedence over the configured log level and format.
func (opts *GlobalOptions) setup(mode observability.AppMode) (*config.Config, observability.Providers, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, observability.Providers{}, fmt.Errorf("load config: %w", err)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, observability.Providers{}, err
	}

	if opts.Verbose {
		level = slog.LevelDebug
	}

	if opts.NoColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = level
	obsCfg.LogJSON = opts.LogJSON || cfg.Logging.Format == "json"
	obsCfg.OTLPEndpoint = cfg.Metrics.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Metrics.OTLPInsecure

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return cfg, providers, nil
}
