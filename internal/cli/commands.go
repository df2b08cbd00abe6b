package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tripnav/internal/access"
	"tripnav/internal/app"
	"tripnav/internal/buildinfo"
	"tripnav/internal/model"
	"tripnav/internal/opt"
	"tripnav/internal/store"
)

func newOptimizeCmd(o *options) *cobra.Command {
	var (
		file   string
		tier   string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize an itinerary request",
		Long:  `Reads an optimize request (JSON) and prints the search result.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readRequest(cmd, file)
			if err != nil {
				return err
			}
			cfg, log, err := o.load()
			if err != nil {
				return err
			}
			deps, err := app.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			res, err := deps.Optimizer.Optimize(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, access.Filter(res, model.ParseTier(tier), model.DateOf(time.Now())), pretty)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "request file, - for stdin")
	cmd.Flags().StringVar(&tier, "tier", string(model.TierAdmin), "view the result as anonymous, authenticated or admin")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent output")
	return cmd
}

func newCompareCmd(o *options) *cobra.Command {
	var (
		file   string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run every search type and compare costs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readRequest(cmd, file)
			if err != nil {
				return err
			}
			cfg, log, err := o.load()
			if err != nil {
				return err
			}
			deps, err := app.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer deps.Close()

			res, err := opt.Compare(cmd.Context(), deps.Optimizer, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res, pretty)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "request file, - for stdin")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent output")
	return cmd
}

func newFingerprintCmd(o *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the cache key of a request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readRequest(cmd, file)
			if err != nil {
				return err
			}
			cfg, _, err := o.load()
			if err != nil {
				return err
			}
			fp, err := opt.Fingerprint(req, app.EngineConfig(cfg).Defaults)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "request file, - for stdin")
	return cmd
}

// openSQL opens the configured SQL catalog without migrating it.
func openSQL(cmd *cobra.Command, o *options) (*store.SQL, error) {
	cfg, _, err := o.load()
	if err != nil {
		return nil, err
	}
	switch cfg.Catalog.Driver {
	case "postgres":
		return store.NewPostgres(cmd.Context(), cfg.Catalog.DSN)
	case "sqlite":
		return store.NewSQLite(cmd.Context(), cfg.Catalog.DSN)
	}
	return nil, fmt.Errorf("catalog driver %q has no schema; use --catalog sqlite or postgres", cfg.Catalog.Driver)
}

func newMigrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the price catalog schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openSQL(cmd, o)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := db.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("applied %d migration(s) to %s catalog\n", n, db.Dialect())
			return nil
		},
	}
}

func newImportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import [seed.yaml]",
		Short: "Load a YAML seed file into the SQL price catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			seed, err := store.ParseSeed(f)
			f.Close()
			if err != nil {
				return err
			}
			quotes, err := seed.Quotes()
			if err != nil {
				return err
			}
			if len(quotes) == 0 {
				return errEmptySeed
			}
			db, err := openSQL(cmd, o)
			if err != nil {
				return err
			}
			defer db.Close()
			if _, err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			if err := db.Insert(cmd.Context(), quotes...); err != nil {
				return err
			}
			cmd.Printf("imported %d quotes into %s catalog\n", len(quotes), db.Dialect())
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("tripnav version %s\n", buildinfo.String())
		},
	}
}

var errEmptySeed = errors.New("seed file has no prices")
