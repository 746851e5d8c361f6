package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the decoded value stored at KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			var v any
			dst := any(&v)
			var raw string
			if a.cfg.Codec == "raw" {
				dst = &raw
			}
			ok, err := a.cache.Get(ctx, args[0], dst)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			if a.cfg.Codec == "raw" {
				fmt.Fprintln(a.stdout, raw)
				return nil
			}
			fmt.Fprintln(a.stdout, render(v))
			return nil
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store VALUE at KEY with --ttl minutes (or the configured default)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			var v any = args[1]
			if asJSON {
				if err := json.Unmarshal([]byte(args[1]), &v); err != nil {
					return fmt.Errorf("--json: %w", err)
				}
			}
			ttl := a.cfg.DefaultTTL()
			if a.ttlMinutes > 0 {
				ttl = time.Duration(a.ttlMinutes) * time.Minute
			}
			if err := a.cache.SetSync(ctx, args[0], v, ttl); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "OK (ttl %s)\n", ttl)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "parse VALUE as JSON before storing")
	return cmd
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists KEY",
		Short: "Report whether KEY is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			ok, err := a.cache.IsSet(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, ok)
			return nil
		},
	}
}

func newDelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "del KEY...",
		Aliases: []string{"remove", "rm"},
		Short:   "Remove one or more keys; missing keys are not an error",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			for _, k := range args {
				if err := a.cache.Remove(ctx, k); err != nil {
					return fmt.Errorf("%s: %w", k, err)
				}
			}
			if err := a.cache.Wait(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "removed %d key(s)\n", len(args))
			return nil
		},
	}
}

func newRemovePatternCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-pattern SUBSTRING",
		Short: "Remove every key containing SUBSTRING",
		Long: `Scan every endpoint and remove each key containing SUBSTRING. The sweep is not
atomic: keys written while it runs may survive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			n, err := a.cache.RemoveByPattern(ctx, args[0])
			if err != nil {
				return fmt.Errorf("removed %d key(s) before failing: %w", n, err)
			}
			fmt.Fprintf(a.stdout, "removed %d key(s)\n", n)
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every key of the selected database, one by one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			n, err := a.cache.Clear(ctx)
			if err != nil {
				return fmt.Errorf("removed %d key(s) before failing: %w", n, err)
			}
			fmt.Fprintf(a.stdout, "removed %d key(s)\n", n)
			return nil
		},
	}
}

func newFlushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Flush the selected database on every endpoint (server-side FLUSHDB)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if err := a.mgr.FlushDatabase(ctx, a.cfg.Database); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "flushed database %d\n", a.cfg.Database)
			return nil
		},
	}
}

func newEndpointsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints behind the connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			eps, err := a.mgr.Endpoints(ctx)
			if err != nil {
				return err
			}
			for _, ep := range eps {
				fmt.Fprintln(a.stdout, ep)
			}
			return nil
		},
	}
}

// render prints strings bare and everything else as JSON when it can.
func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
