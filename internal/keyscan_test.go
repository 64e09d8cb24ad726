package internal

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCountKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	ctx := context.Background()

	for i := 0; i < 1200; i++ {
		mr.Set(fmt.Sprintf("as:user-%d", i), "x")
	}
	mr.Set("arc:user:u1", "x")
	mr.Set("arl:login:alice", "1")

	n, truncated, err := CountKeys(ctx, rdb, "as:*", 0)
	if err != nil {
		t.Fatalf("CountKeys failed: %v", err)
	}
	if n != 1200 || truncated {
		t.Fatalf("expected 1200 untruncated, got %d truncated=%v", n, truncated)
	}

	n, truncated, err = CountKeys(ctx, rdb, "as:*", 100)
	if err != nil {
		t.Fatalf("CountKeys failed: %v", err)
	}
	if n != 100 || !truncated {
		t.Fatalf("expected limit of 100 to truncate, got %d truncated=%v", n, truncated)
	}

	n, _, err = CountKeys(ctx, rdb, "nothing:*", 0)
	if err != nil || n != 0 {
		t.Fatalf("expected no matches, got %d err=%v", n, err)
	}

	mr.SetError("LOADING")
	if _, _, err := CountKeys(ctx, rdb, "as:*", 0); err == nil {
		t.Fatal("expected scan error to surface")
	}
}
