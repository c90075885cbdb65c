// Package main is the entry point for the asentu binary.
// It resolves .asn pseudo-domains from the command line and runs the
// resolver daemon the desktop shell talks to.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Asenturisk/asentu-browser/pkg/config"
	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/ipc"
	"github.com/Asenturisk/asentu-browser/pkg/logging"
	"github.com/Asenturisk/asentu-browser/pkg/resolver"
	"github.com/Asenturisk/asentu-browser/pkg/telemetry"
)

// errUnresolved is returned when at least one address could not be resolved.
var errUnresolved = errors.New("one or more addresses could not be resolved")

// backend is what the commands need from a resolver: both the direct
// resolver and the ipc client report cache status.
type backend interface {
	resolver.Resolver
	Status(ctx context.Context) (domain.CacheStatus, error)
}

// app carries state shared by every subcommand once the root has run.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errUnresolved) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// newRootCmd creates the root command for asentu
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "asentu",
		Short: "Resolver for .asn pseudo-domains",
		Long: `Resolve .asn pseudo-domains of the Asentu browser to real URLs.

The mapping table is fetched from a remote JSON document, cached for a short
time and backed by a built-in fallback table when the network is unavailable.

Example:
  asentu resolve hello.asn/about
  asentu serve --config /etc/asentu/asentu.yaml`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to configuration file (YAML)")
	flags.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	flags.String("backend", "", "Resolver backend (direct, ipc)")
	flags.String("endpoint", "", "Resolver daemon endpoint for the ipc backend (host:port or unix:///path)")

	rootCmd.AddCommand(
		newResolveCmd(a),
		newNavigateCmd(a),
		newServeCmd(a),
		newCacheCmd(a),
	)
	return rootCmd
}

// setup loads configuration, applies flag overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("backend") {
		cfg.Resolver.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("endpoint") {
		cfg.Resolver.Endpoint, _ = flags.GetString("endpoint")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger)
	a.metrics = telemetry.NewMetrics()
	return nil
}

// newBackend builds exactly one resolver for the configured backend.
func (a *app) newBackend() (backend, error) {
	rc := a.cfg.Resolver
	if rc.Backend == config.BackendIPC {
		client, err := ipc.NewClient(rc.Endpoint, ipc.WithTimeout(rc.EndpointTimeout))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	direct, err := a.newDirect()
	if err != nil {
		return nil, err
	}
	return direct, nil
}

func (a *app) newDirect() (*resolver.Direct, error) {
	rc := a.cfg.Resolver
	source, err := resolver.NewHTTPSource(rc.MappingsURL, rc.FetchTimeout)
	if err != nil {
		return nil, err
	}
	return resolver.New(source,
		resolver.WithTTL(rc.CacheTTL),
		resolver.WithFallback(rc.FallbackMapping()),
		resolver.WithLogger(a.logger),
		resolver.WithMetrics(a.metrics),
	), nil
}
