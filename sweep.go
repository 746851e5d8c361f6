package rediscache

import "context"

// Sweeper enumerates and deletes the keys of one logical database that match a
// glob pattern ("" matches every key), returning how many deletes it issued.
//
// The default sweeper scans each endpoint and deletes matches one by one. It is not
// atomic: keys written after the scan passes them survive, and keys deleted by others
// mid-scan are harmless no-ops. Swap in a server-side script through Options.Sweeper
// when stronger guarantees are needed.
type Sweeper interface {
	Sweep(ctx context.Context, mgr *ConnectionManager, db int, pattern string) (int, error)
}

// SweeperFunc adapts a function to Sweeper.
type SweeperFunc func(ctx context.Context, mgr *ConnectionManager, db int, pattern string) (int, error)

func (f SweeperFunc) Sweep(ctx context.Context, mgr *ConnectionManager, db int, pattern string) (int, error) {
	return f(ctx, mgr, db, pattern)
}

type scanDelete struct{}

func (scanDelete) Sweep(ctx context.Context, mgr *ConnectionManager, db int, pattern string) (int, error) {
	eps, err := mgr.Endpoints(ctx)
	if err != nil {
		return 0, err
	}
	database, err := mgr.Database(ctx, db)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ep := range eps {
		srv, err := mgr.Server(ctx, ep)
		if err != nil {
			return removed, err
		}
		err = srv.Keys(ctx, db, pattern, func(key string) error {
			if err := database.Del(ctx, key); err != nil {
				return err
			}
			removed++
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}
