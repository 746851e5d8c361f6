package cli

import (
	"fmt"
	stdslog "log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/rediscache"
	asynchook "github.com/unkn0wn-root/rediscache/hooks/async"
	"github.com/unkn0wn-root/rediscache/hooks/prom"
	rclogrus "github.com/unkn0wn-root/rediscache/log/logrus"
	rcslog "github.com/unkn0wn-root/rediscache/log/slog"
	rczap "github.com/unkn0wn-root/rediscache/log/zap"
	"github.com/unkn0wn-root/rediscache/sloghooks"
)

// setupObservability picks the log backend from config and assembles hooks:
// slog event logging (async) for the slog backend, prometheus when --metrics or
// metrics.enabled is set.
func (a *app) setupObservability() error {
	var hooks []rediscache.Hooks

	switch a.cfg.Log.Backend {
	case "zap":
		l, zl, err := rczap.NewProduction(a.cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("zap logger: %w", err)
		}
		a.log = l
		a.closers = append(a.closers, func() error {
			_ = zl.Sync() // stderr sync fails on some terminals
			return nil
		})
	case "logrus":
		lvl, err := logrus.ParseLevel(a.cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("logrus logger: %w", err)
		}
		base := logrus.New()
		base.SetOutput(a.stderr)
		base.SetLevel(lvl)
		base.SetFormatter(&logrus.JSONFormatter{})
		a.log = rclogrus.New(base)
	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(a.cfg.Log.Level)); err != nil {
			return fmt.Errorf("slog logger: %w", err)
		}
		sl := stdslog.New(stdslog.NewJSONHandler(a.stderr, &stdslog.HandlerOptions{Level: lvl}))
		a.log = rcslog.New(sl)

		ah := asynchook.New(sloghooks.New(sl, sloghooks.Options{DecodeFailedEvery: 10}), 1, 256)
		a.closers = append(a.closers, func() error {
			ah.Close()
			return nil
		})
		hooks = append(hooks, ah)
	default:
		return fmt.Errorf("unknown log backend %q", a.cfg.Log.Backend)
	}

	if a.metrics || a.cfg.Metrics.Enabled {
		a.reg = prometheus.NewRegistry()
		hooks = append(hooks, prom.New(a.cfg.Metrics.Prefix, a.reg))
	}
	a.hooks = rediscache.MultiHooks(hooks...)
	return nil
}
