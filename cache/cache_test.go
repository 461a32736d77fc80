package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	c, err := NewMemoryCache(MemoryConfig{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
		Metrics:     false,
	})
	if err != nil {
		t.Fatalf("Failed to create memory cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "test_key", "test_value", 10*time.Second); err != nil {
		t.Fatalf("Failed to set cache value: %v", err)
	}

	var got string
	if err := c.Get(ctx, "test_key", &got); err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if got != "test_value" {
		t.Errorf("Retrieved value %s does not match original value test_value", got)
	}

	exists, err := c.Exists(ctx, "test_key")
	if err != nil {
		t.Fatalf("Failed to check if key exists: %v", err)
	}
	if !exists {
		t.Error("Key should exist but was not found")
	}

	if err := c.Delete(ctx, "test_key"); err != nil {
		t.Fatalf("Failed to delete cache key: %v", err)
	}
	if err := c.Get(ctx, "test_key", &got); !IsCacheMiss(err) {
		t.Errorf("Should return cache miss for deleted key, got: %v", err)
	}
}

func TestMemoryCacheStruct(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	type token struct {
		AuthorizationToken string `json:"authorizationToken"`
		APIURL             string `json:"apiUrl"`
	}
	value := token{AuthorizationToken: "abc", APIURL: "https://api.example.com"}

	if err := c.Set(ctx, "struct_key", value, 10*time.Second); err != nil {
		t.Fatalf("Failed to set cache value: %v", err)
	}

	var got token
	if err := c.Get(ctx, "struct_key", &got); err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if got != value {
		t.Errorf("Retrieved value %+v does not match original value %+v", got, value)
	}
}

func TestMemoryCacheBytes(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "raw", []byte("payload"), 0); err != nil {
		t.Fatalf("Failed to set cache value: %v", err)
	}
	var got []byte
	if err := c.Get(ctx, "raw", &got); err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Retrieved value %q does not match original value %q", got, "payload")
	}
}

func TestCacheMiss(t *testing.T) {
	c := newTestMemoryCache(t)

	var value string
	err := c.Get(context.Background(), "nonexistent_key", &value)
	if err == nil {
		t.Fatal("Should return error for nonexistent key")
	}
	if !IsCacheMiss(err) {
		t.Errorf("Error should be cache miss, got: %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	if err != nil {
		t.Fatalf("Failed to create default provider: %v", err)
	}
	defer func() { _ = p.Close() }()
	if p.Name() != "memory" {
		t.Errorf("Default provider should be memory, got %s", p.Name())
	}

	if _, err := NewProvider(Config{Type: "memcached"}); err == nil {
		t.Error("Unsupported cache type should return error")
	}
}

func TestKeyBuilder(t *testing.T) {
	if got := BackblazeAuth.Build("key-id"); got != "b2:auth:key-id" {
		t.Errorf("unexpected key %s", got)
	}
	if got := NewKeyBuilder("upload").Build(); got != "upload" {
		t.Errorf("unexpected key %s", got)
	}
}

// TestRedisCache 需要可用的 Redis，设置 REDIS_ADDR 后运行
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	c, err := NewRedisCache(RedisConfig{Address: addr})
	if err != nil {
		t.Fatalf("Failed to connect redis: %v", err)
	}
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	if err := c.Set(ctx, "uploadkit_test", map[string]int{"n": 1}, time.Minute); err != nil {
		t.Fatalf("Failed to set cache value: %v", err)
	}
	var got map[string]int
	if err := c.Get(ctx, "uploadkit_test", &got); err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if got["n"] != 1 {
		t.Errorf("unexpected value %v", got)
	}
	_ = c.Delete(ctx, "uploadkit_test")
	if err := c.Get(ctx, "uploadkit_test", &got); !IsCacheMiss(err) {
		t.Errorf("Should return cache miss after delete, got: %v", err)
	}
}
