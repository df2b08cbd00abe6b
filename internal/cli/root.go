// Package cli implements the tripnav command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tripnav/internal/config"
	"tripnav/internal/model"
)

type options struct {
	configPath string
	driver     string
	dsn        string
	seed       string
	logLevel   string
	noCache    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "tripnav",
		Short:         "Find the cheapest multi-destination itineraries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "config file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	pf.StringVar(&o.driver, "catalog", "", "catalog driver: memory, sqlite or postgres")
	pf.StringVar(&o.dsn, "dsn", "", "catalog database DSN or SQLite file")
	pf.StringVar(&o.seed, "seed", "", "YAML seed file for the memory catalog")
	pf.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&o.noCache, "no-cache", false, "skip the result cache")

	root.AddCommand(
		newOptimizeCmd(o),
		newCompareCmd(o),
		newFingerprintCmd(o),
		newMigrateCmd(o),
		newImportCmd(o),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// load reads configuration and applies command line overrides.
func (o *options) load() (*config.Config, *slog.Logger, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv(config.PathEnv)
	}
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if o.driver != "" {
		cfg.Catalog.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Catalog.DSN = o.dsn
	}
	if o.seed != "" {
		cfg.Catalog.Seed = o.seed
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.noCache {
		cfg.Cache.Backend = "none"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	return cfg, log, nil
}

// readRequest decodes an optimize request from a file, or stdin for "-".
func readRequest(cmd *cobra.Command, path string) (model.OptimizeRequest, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return model.OptimizeRequest{}, err
		}
		defer f.Close()
		r = f
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return model.OptimizeRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func printJSON(cmd *cobra.Command, v any, pretty bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
