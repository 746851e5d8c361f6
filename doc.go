// Package rediscache is a caching-client facade over a remote key-value store.
//
// Components:
//   - ConnectionManager: owns the one shared store connection. Created lazily,
//     health-checked on every use and replaced when unhealthy (double-checked, at most
//     one dial in flight).
//   - Cache: get/set/exists/remove plus pattern invalidation and clear. Each operation
//     borrows a database handle from the manager for the duration of the call.
//   - codec.Serializer: value <-> bytes. JSON by default.
//   - store.Dialer: the store client. store/redis (go-redis) by default; store/local
//     runs the same contract in-process on bigcache.
//
// Usage:
//
//	mgr, _ := rediscache.NewConnectionManager(rediscache.ManagerOptions{
//	    ConnectionString: "redis://localhost:6379/0",
//	})
//	defer mgr.Close()
//
//	c, _ := rediscache.New(rediscache.Options{Manager: mgr})
//	_ = c.Set(ctx, "user:1", User{ID: "1"})
//	u, ok, err := rediscache.GetAs[User](ctx, c, "user:1")
//
// RemoveByPattern and Clear scan every endpoint and delete matches one by one.
// They are not atomic: writers racing with the scan may leave matching keys behind.
package rediscache
