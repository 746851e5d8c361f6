// Package cli implements rcachectl, an admin CLI over the rediscache API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/rediscache"
	"github.com/unkn0wn-root/rediscache/config"
)

type app struct {
	configPath string
	conn       string
	db         int
	ttlMinutes int
	logLevel   string
	metrics    bool
	timeout    time.Duration

	cfg   *config.Config
	reg   *prometheus.Registry
	log   rediscache.Logger
	hooks rediscache.Hooks
	mgr   *rediscache.ConnectionManager
	cache rediscache.Cache

	closers []func() error
	stdout  io.Writer
	stderr  io.Writer
}

// Run executes rcachectl with args and releases every resource it opened.
func Run(args []string) error {
	a := newApp(os.Stdout, os.Stderr)
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return errors.Join(err, a.close())
}

func newApp(out, errOut io.Writer) *app {
	return &app{stdout: out, stderr: errOut}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rcachectl",
		Short: "Inspect and maintain a rediscache keyspace",
		Long: `rcachectl reads, writes and sweeps keys through the same connection manager and
cache the library uses.

Examples:
  rcachectl get user:1
  rcachectl set user:1 '{"name":"ada"}' --json --ttl 10
  rcachectl remove-pattern session:
  rcachectl flush --db 2 --conn redis://localhost:6379/0`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to the config file (default ./rcache.yaml)")
	pf.StringVar(&a.conn, "conn", "", "connection string, overrides the config")
	pf.IntVar(&a.db, "db", rediscache.DefaultDatabase, "logical database, -1 for the connection default")
	pf.IntVar(&a.ttlMinutes, "ttl", 0, "entry TTL in minutes for set (0 = config default)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.metrics, "metrics", false, "print hook metrics after the command")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "overall command timeout")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.setup(cmd)
	}
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		if a.metrics {
			return a.printMetrics()
		}
		return nil
	}

	cmd.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newExistsCmd(a),
		newDelCmd(a),
		newRemovePatternCmd(a),
		newClearCmd(a),
		newFlushCmd(a),
		newEndpointsCmd(a),
	)
	return cmd
}

// setup builds the manager and cache once per app; later commands reuse them.
func (a *app) setup(cmd *cobra.Command) error {
	if a.mgr != nil {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if a.conn != "" {
		cfg.ConnectionString = a.conn
	}
	if flags.Changed("db") {
		cfg.Database = a.db
	}
	if a.ttlMinutes > 0 {
		cfg.DefaultTTLMinutes = a.ttlMinutes
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.setupObservability(); err != nil {
		return err
	}

	mo, err := cfg.ManagerOptions(a.log, a.hooks)
	if err != nil {
		return err
	}
	mgr, err := rediscache.NewConnectionManager(mo)
	if err != nil {
		return err
	}
	a.mgr = mgr

	co, err := cfg.CacheOptions(mgr, a.log, a.hooks)
	if err != nil {
		return err
	}
	c, err := rediscache.New(co)
	if err != nil {
		return err
	}
	a.cache = c
	return nil
}

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

// close drains the cache, then the manager, then logging and hook sinks.
func (a *app) close() error {
	var errs []error
	if a.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, a.cache.Close(ctx))
		cancel()
	}
	if a.mgr != nil {
		errs = append(errs, a.mgr.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	a.cache, a.mgr = nil, nil
	return errors.Join(errs...)
}

func (a *app) printMetrics() error {
	if a.reg == nil {
		return nil
	}
	mfs, err := a.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				v = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Fprintf(a.stderr, "%s %g\n", name, v)
		}
	}
	return nil
}
