package devotp

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"otp-gateway/internal/platform/clock"
)

var storeNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStoreWithClock(clock.NewFake(storeNow))
	ctx := context.Background()

	store.Put(ctx, "challenge-1", "123456", storeNow.Add(5*time.Minute))

	code, ok := store.Get(ctx, "challenge-1")
	if !ok {
		t.Fatal("Get should return the code after Put")
	}
	if code != "123456" {
		t.Errorf("code = %q, want %q", code, "123456")
	}
}

func TestMemoryStore_Get_ReturnsFalseWhenMissing(t *testing.T) {
	store := NewMemoryStore()

	code, ok := store.Get(context.Background(), "nonexistent")
	if ok {
		t.Error("Get should return false when the code is missing")
	}
	if code != "" {
		t.Errorf("code = %q, want empty string", code)
	}
}

func TestMemoryStore_Put_IgnoresExpired(t *testing.T) {
	store := NewMemoryStoreWithClock(clock.NewFake(storeNow))

	store.Put(context.Background(), "challenge-1", "123456", storeNow)

	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestMemoryStore_Get_ExpiresWithClock(t *testing.T) {
	clk := clock.NewFake(storeNow)
	store := NewMemoryStoreWithClock(clk)
	ctx := context.Background()
	store.Put(ctx, "challenge-1", "123456", storeNow.Add(time.Minute))

	clk.Advance(59 * time.Second)
	if _, ok := store.Get(ctx, "challenge-1"); !ok {
		t.Fatal("Get should succeed before expiry")
	}

	clk.Advance(time.Second)
	code, ok := store.Get(ctx, "challenge-1")
	if ok || code != "" {
		t.Errorf("Get at expiry = %q, %v; want empty, false", code, ok)
	}
	if store.Len() != 0 {
		t.Errorf("expired entry should be removed on Get, Len = %d", store.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStoreWithClock(clock.NewFake(storeNow))
	ctx := context.Background()
	store.Put(ctx, "challenge-1", "123456", storeNow.Add(time.Minute))

	store.Delete(ctx, "challenge-1")
	store.Delete(ctx, "challenge-1")

	if _, ok := store.Get(ctx, "challenge-1"); ok {
		t.Error("Get should return false after Delete")
	}
}

func TestMemoryStore_Purge(t *testing.T) {
	clk := clock.NewFake(storeNow)
	store := NewMemoryStoreWithClock(clk)
	ctx := context.Background()
	store.Put(ctx, "short", "111111", storeNow.Add(time.Minute))
	store.Put(ctx, "long", "222222", storeNow.Add(10*time.Minute))

	if n := store.Purge(storeNow); n != 0 {
		t.Errorf("Purge(now) = %d, want 0", n)
	}
	if n := store.Purge(storeNow.Add(time.Minute)); n != 1 {
		t.Errorf("Purge(+1m) = %d, want 1", n)
	}
	if n := store.Purge(storeNow.Add(time.Minute)); n != 0 {
		t.Errorf("second Purge = %d, want 0", n)
	}
	if code, ok := store.Get(ctx, "long"); !ok || code != "222222" {
		t.Errorf("Get(long) = %q, %v; want 222222, true", code, ok)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStoreWithClock(clock.NewFake(storeNow))
	ctx := context.Background()
	expiresAt := storeNow.Add(5 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		id := "challenge-" + strconv.Itoa(i)
		go func() {
			defer wg.Done()
			store.Put(ctx, id, "123456", expiresAt)
		}()
		go func() {
			defer wg.Done()
			store.Get(ctx, id)
		}()
	}
	wg.Wait()

	if store.Len() != 10 {
		t.Errorf("Len = %d, want 10", store.Len())
	}
}
