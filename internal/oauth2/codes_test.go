package oauth2

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/cache"
)

func newTestCodeStore(t *testing.T, ttl time.Duration) *CodeStore {
	t.Helper()
	c, err := cache.New(cache.Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return NewCodeStore(c, ttl)
}

func TestCodeStore_RecordConsume(t *testing.T) {
	ctx := context.Background()
	cs := newTestCodeStore(t, time.Minute)

	code, err := cs.Record(ctx, "user-1", []string{"openid", "user"}, "nonce-abc")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if code == "" {
		t.Fatal("empty code")
	}

	ac, err := cs.Consume(ctx, code)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ac.UserID != "user-1" {
		t.Fatalf("user = %q", ac.UserID)
	}
	if ac.Nonce != "nonce-abc" {
		t.Fatalf("nonce = %q", ac.Nonce)
	}
	got := ac.Scopes()
	if len(got) != 2 || got[0] != "openid" || got[1] != "user" {
		t.Fatalf("scopes = %v", got)
	}
}

func TestCodeStore_SingleUse(t *testing.T) {
	ctx := context.Background()
	cs := newTestCodeStore(t, time.Minute)

	code, err := cs.Record(ctx, "user-1", []string{"openid"}, "")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := cs.Consume(ctx, code); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, err := cs.Consume(ctx, code); err == nil {
		t.Fatal("second consume should fail")
	} else if oe, ok := err.(*OIDCError); !ok || oe.Code != "invalid_grant" {
		t.Fatalf("want invalid_grant, got %v", err)
	}
}

func TestCodeStore_UnknownCode(t *testing.T) {
	cs := newTestCodeStore(t, time.Minute)
	if _, err := cs.Consume(context.Background(), "nope"); err == nil {
		t.Fatal("unknown code should fail")
	}
	if _, err := cs.Consume(context.Background(), ""); err == nil {
		t.Fatal("empty code should fail")
	}
}

// Concurrent redemptions of the same code: exactly one wins.
func TestCodeStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	cs := newTestCodeStore(t, time.Minute)

	code, err := cs.Record(ctx, "user-1", []string{"openid"}, "")
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	const n = 32
	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := cs.Consume(ctx, code); err == nil {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}
