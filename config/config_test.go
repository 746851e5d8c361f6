package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unkn0wn-root/rediscache"
	"github.com/unkn0wn-root/rediscache/codec"
	"github.com/unkn0wn-root/rediscache/nearcache"
	"github.com/unkn0wn-root/rediscache/store/local"
	storeredis "github.com/unkn0wn-root/rediscache/store/redis"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rcache.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Database != rediscache.DefaultDatabase {
		t.Fatalf("Database = %d, want %d", c.Database, rediscache.DefaultDatabase)
	}
	if c.DefaultTTL() != 60*time.Minute {
		t.Fatalf("DefaultTTL = %v", c.DefaultTTL())
	}
	if c.Write.Mode != "await" || c.Log.Backend != "zap" || c.NearCache.TTL != time.Minute {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	p := writeFile(t, `
connection_string: local://test
database: 3
default_ttl_minutes: 5
op_timeout: 250ms
codec: msgpack
write:
  mode: detached
  workers: 2
near_cache:
  enabled: false
  max_cost_mb: 8
local:
  endpoints: 3
`)
	t.Setenv("RCACHE_NEAR_CACHE_ENABLED", "true")
	t.Setenv("RCACHE_DEFAULT_TTL_MINUTES", "7")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ConnectionString != "local://test" || c.Database != 3 || c.OpTimeout != 250*time.Millisecond {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.DefaultTTL() != 7*time.Minute {
		t.Fatalf("env override not applied: ttl=%v", c.DefaultTTL())
	}
	if !c.NearCache.Enabled || c.NearCache.MaxCostMB != 8 {
		t.Fatalf("near cache = %+v", c.NearCache)
	}
	if c.Write.Queue != 1024 {
		t.Fatalf("unset key lost its default: %d", c.Write.Queue)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for an explicit missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty conn":     func(c *Config) { c.ConnectionString = "" },
		"db below -1":    func(c *Config) { c.Database = -2 },
		"zero ttl":       func(c *Config) { c.DefaultTTLMinutes = 0 },
		"codec":          func(c *Config) { c.Codec = "xml" },
		"write mode":     func(c *Config) { c.Write.Mode = "later" },
		"near cost":      func(c *Config) { c.NearCache.Enabled = true; c.NearCache.MaxCostMB = 0 },
		"log backend":    func(c *Config) { c.Log.Backend = "printf" },
		"neg op timeout": func(c *Config) { c.OpTimeout = -time.Second },
	}
	for name, mut := range cases {
		c := Default()
		mut(c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestDialerSelection(t *testing.T) {
	c := Default()
	d, err := c.Dialer()
	if err != nil {
		t.Fatalf("Dialer: %v", err)
	}
	if _, ok := d.(storeredis.Dialer); !ok {
		t.Fatalf("redis:// should use the redis dialer, got %T", d)
	}

	c.ConnectionString = "local://x"
	d, err = c.Dialer()
	if err != nil {
		t.Fatalf("Dialer: %v", err)
	}
	if _, ok := d.(*local.Cluster); !ok {
		t.Fatalf("local:// should use the local cluster, got %T", d)
	}
}

func TestBuildCacheFromConfig(t *testing.T) {
	c := Default()
	c.ConnectionString = "local://x"
	c.Codec = "cbor"
	c.MaxDecodeBytes = 1 << 10
	c.NearCache.Enabled = true

	mo, err := c.ManagerOptions(nil, nil)
	if err != nil {
		t.Fatalf("ManagerOptions: %v", err)
	}
	mgr, err := rediscache.NewConnectionManager(mo)
	if err != nil {
		t.Fatalf("NewConnectionManager: %v", err)
	}
	defer mgr.Close()

	co, err := c.CacheOptions(mgr, nil, nil)
	if err != nil {
		t.Fatalf("CacheOptions: %v", err)
	}
	if _, ok := co.Serializer.(codec.Limit); !ok {
		t.Fatalf("max_decode_bytes should wrap the codec, got %T", co.Serializer)
	}
	if _, ok := co.NearCache.(*nearcache.Ristretto); !ok {
		t.Fatalf("near cache not built, got %T", co.NearCache)
	}

	cache, err := rediscache.New(co)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cache.Close(context.Background())

	ctx := context.Background()
	if err := cache.Set(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rediscache.GetAs[string](ctx, cache, "greeting")
	if err != nil || !ok || got != "hello" {
		t.Fatalf("GetAs = %q %v %v", got, ok, err)
	}
}
