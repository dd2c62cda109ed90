package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheBasicOps(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	got, err := c.Get(ctx, "missing")
	if err != nil || got != "" {
		t.Fatalf("expected empty miss, got %q, %v", got, err)
	}

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("expected v, got %q, %v", got, err)
	}
	ttl, err := c.TTL(ctx, "k")
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %s, %v", ttl, err)
	}
	n, err := c.Exists(ctx, "k", "missing")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 existing key, got %d, %v", n, err)
	}

	mr.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, "k")
	if err != nil || got != "" {
		t.Fatalf("expected expiry, got %q, %v", got, err)
	}

	if err := c.Set(ctx, "a", []byte{0x00, 0xff}, 0); err != nil {
		t.Fatalf("set binary: %v", err)
	}
	got, err = c.Get(ctx, "a")
	if err != nil || got != string([]byte{0x00, 0xff}) {
		t.Fatalf("binary value changed: %q, %v", got, err)
	}
	if err := c.Del(ctx, "a"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if err := c.Del(ctx); err != nil {
		t.Fatalf("empty del: %v", err)
	}
	if n, _ := c.Exists(ctx, "a"); n != 0 {
		t.Fatalf("expected key to be deleted")
	}
}

func TestNewRedisCacheWithConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	c, err := NewRedisCacheWithConfig(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if _, err := NewRedisCacheWithConfig(&RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	if _, err := NewRedisCacheWithConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestJitterTTL(t *testing.T) {
	if JitterTTL(0) != 0 {
		t.Fatalf("zero ttl must stay zero")
	}
	for i := 0; i < 50; i++ {
		got := JitterTTL(10 * time.Minute)
		if got < 9*time.Minute || got > 10*time.Minute {
			t.Fatalf("jitter out of range: %s", got)
		}
	}
}

func TestRedisCacheCounters(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "counter", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx: ok=%v err=%v", ok, err)
	}
	ok, err = c.SetNX(ctx, "counter", 1, time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx must not overwrite: ok=%v err=%v", ok, err)
	}
	n, err := c.Incr(ctx, "counter")
	if err != nil || n != 2 {
		t.Fatalf("incr: n=%d err=%v", n, err)
	}
	if err := c.Expire(ctx, "counter", time.Second); err != nil {
		t.Fatalf("expire: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if got, _ := c.Get(ctx, "counter"); got != "" {
		t.Fatalf("expected counter to expire, got %q", got)
	}
}
