// Command projectctl administers a projecttracker document store: it lists
// and exports records, adds users, deletes with cascade, repairs the
// leftovers of interrupted cascades and inspects or purges the stored
// documents.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projecttracker/internal/blob"
	"projecttracker/internal/config"
	"projecttracker/internal/logging"
	"projecttracker/internal/metrics"
	"projecttracker/internal/repository"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root pre-run has loaded
// configuration and opened the store.
type app struct {
	configPath string
	out        io.Writer
	errOut     io.Writer

	cfg      *config.Config
	logger   *zap.Logger
	store    blob.Store
	repos    *repository.Set
	expvar   *metrics.Expvar
	registry *prometheus.Registry
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "projectctl",
		Short: "Administer a projecttracker document store",
		Long: `projectctl operates directly on the configured projecttracker store.

Configuration comes from --config (YAML) overlaid with PROJECTTRACKER_*
environment variables, e.g. PROJECTTRACKER_STORAGE_DRIVER=sqlite.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML configuration file")

	root.AddCommand(
		a.reconcileCmd(),
		a.listCmd(),
		a.showCmd(),
		a.exportCmd(),
		a.userCmd(),
		a.projectCmd(),
		a.deleteCmd(),
		a.resourcesCmd(),
		a.purgeCmd(),
	)
	a.closeOnError(root)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewWithWriter(cfg.Log, a.errOut)
	if err != nil {
		return err
	}
	store, err := blob.Open(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	opts := []repository.Option{
		repository.WithResources(cfg),
		repository.WithLogger(logger),
	}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.expvar = metrics.NewExpvar("")
		opts = append(opts, repository.WithMetrics(metrics.Multi{metrics.NewPrometheus(a.registry), a.expvar}))
	}
	a.cfg = cfg
	a.logger = logger
	a.store = store
	a.repos = repository.NewSet(store, opts...)
	logger.Debug("store opened",
		zap.String("driver", cfg.Storage.Driver),
		logging.RedactedString("postgres_dsn", cfg.Storage.PostgresDSN.Value()))
	return nil
}

func (a *app) teardown() error {
	if a.expvar != nil {
		families, err := a.registry.Gather()
		if err != nil {
			return err
		}
		a.logger.Debug("metrics gathered", zap.Int("families", len(families)))
		enc := json.NewEncoder(a.errOut)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a.expvar.Snapshot()); err != nil {
			return err
		}
	}
	if err := a.closeStore(); err != nil {
		return err
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

// closeStore closes backends that hold connections or file handles. It is
// safe to call more than once.
func (a *app) closeStore() error {
	store := a.store
	a.store = nil
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close %s store: %w", store.Driver(), err)
		}
	}
	return nil
}

// closeOnError wraps every RunE below cmd so a failing command still closes
// the store; the post-run hook only runs after success.
func (a *app) closeOnError(cmd *cobra.Command) {
	for _, c := range cmd.Commands() {
		a.closeOnError(c)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		err := run(c, args)
		if err != nil {
			_ = a.closeStore()
		}
		return err
	}
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *app) writeJSON(b []byte) error {
	if _, err := a.out.Write(b); err != nil {
		return err
	}
	_, err := io.WriteString(a.out, "\n")
	return err
}
