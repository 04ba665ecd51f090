package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromCmdable(raw)
}

func TestLockIsExclusive(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := client.LockKey("pricing", "loc-1", "prod-1")

	ok, err := client.AcquireLock(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to win")
	}

	ok, err = client.AcquireLock(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to lose")
	}

	if err := client.ReleaseLock(ctx, key); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	ok, err = client.AcquireLock(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire after release to win")
	}
}

func TestGetMissingKeyIsNil(t *testing.T) {
	client := newTestClient(t)
	_, err := client.Get(context.Background(), "pos:missing")
	if !IsNil(err) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	client := newTestClient(t)
	got := client.IdempotencyKey("sale", "abc")
	want := "pos:idempotency:sale:abc"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
