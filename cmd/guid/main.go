// Command guid mints, inspects and serves GUID, TinyGUID and FactoryGUID
// identifiers.
//
// Usage:
//
//	guid generate [flags]        Mint identifiers
//	guid inspect <id>...         Decode identifiers of any shape
//	guid convert <id> --to BASE  Re-encode an identifier
//	guid layouts                 List the factory layout presets
//	guid bench [flags]           Measure minting throughput
//	guid serve [flags]           Run the HTTP service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sxyafiq/guid"
	"github.com/sxyafiq/guid/internal/config"
)

const version = "1.0.0"

// EnvConfig names the default config file.
const EnvConfig = "GUID_CONFIG"

// app carries the state built once by the root command.
type app struct {
	configPath string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
	host   *guid.HostIdentity
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "guid",
		Short:   "Tenant-aware unique identifier toolkit",
		Long:    "guid mints and decodes GUID (21 bytes), TinyGUID (16 bytes) and FactoryGUID (configurable) identifiers.",
		Version: version,

		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv(EnvConfig), "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	root.AddCommand(
		newGenerateCmd(a),
		newInspectCmd(a),
		newConvertCmd(a),
		newLayoutsCmd(a),
		newBenchCmd(a),
		newServeCmd(a),
	)
	return root
}

// load reads the config, builds the logger and installs the host identity.
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := config.FromEnv(&cfg); err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	host, err := cfg.HostIdentity(logger)
	if err != nil {
		return err
	}
	guid.SetIdentity(host)

	a.cfg = cfg
	a.logger = logger
	a.host = host
	return nil
}

// factory builds a Factory from the config. A non-empty layout name replaces
// the configured widths.
func (a *app) factory(layout string, identity guid.Identity) (*guid.Factory, error) {
	fc, err := a.cfg.FactoryConfig(a.logger)
	if err != nil {
		return nil, err
	}
	if layout != "" {
		l, err := guid.LayoutByName(layout)
		if err != nil {
			return nil, err
		}
		fc.Layout = l
	}
	fc.Identity = identity
	return guid.NewFactoryWithConfig(fc)
}

// Shape names accepted by --shape.
const (
	shapeGUID    = "guid"
	shapeTiny    = "tiny"
	shapeFactory = "factory"
)

var errUnknownShape = errors.New("unknown shape")

func checkShape(shape string) error {
	switch shape {
	case shapeGUID, shapeTiny, shapeFactory:
		return nil
	}
	return fmt.Errorf("%w %q: use guid|tiny|factory", errUnknownShape, shape)
}
