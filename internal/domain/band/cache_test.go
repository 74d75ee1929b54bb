package band

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTenancyCacheHitsWithinTTL(t *testing.T) {
	cache := NewTenancyCache(time.Minute)
	calls := 0
	fetch := func() ([]Band, error) {
		calls++
		return []Band{{ID: "band-1"}}, nil
	}

	for i := 0; i < 3; i++ {
		bands, err := cache.Load("viewer-1", fetch)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(bands) != 1 || bands[0].ID != "band-1" {
			t.Fatalf("unexpected bands: %+v", bands)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}
}

func TestTenancyCacheExpires(t *testing.T) {
	cache := NewTenancyCache(time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	calls := 0
	fetch := func() ([]Band, error) {
		calls++
		return nil, nil
	}

	if _, err := cache.Load("viewer-1", fetch); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := cache.Load("viewer-1", fetch); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a refetch after expiry, got %d", calls)
	}
}

func TestTenancyCacheDifferentViewerInvalidates(t *testing.T) {
	cache := NewTenancyCache(time.Minute)
	calls := 0
	fetch := func() ([]Band, error) {
		calls++
		return nil, nil
	}

	cache.Load("viewer-1", fetch)
	cache.Load("viewer-2", fetch)
	cache.Load("viewer-1", fetch)
	if calls != 3 {
		t.Fatalf("expected each viewer change to refetch, got %d", calls)
	}
}

func TestTenancyCacheSharesConcurrentFetch(t *testing.T) {
	cache := NewTenancyCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func() ([]Band, error) {
		calls.Add(1)
		<-release
		return []Band{{ID: "band-1"}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load("viewer-1", fetch); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}

	// Give the goroutines a moment to pile up on the same key.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one shared fetch, got %d", calls.Load())
	}
}

func TestTenancyCacheErrorIsNotCached(t *testing.T) {
	cache := NewTenancyCache(time.Minute)
	calls := 0
	fetch := func() ([]Band, error) {
		calls++
		if calls == 1 {
			return nil, ErrBandNotFound
		}
		return []Band{{ID: "band-1"}}, nil
	}

	if _, err := cache.Load("viewer-1", fetch); err == nil {
		t.Fatalf("expected first load to fail")
	}
	bands, err := cache.Load("viewer-1", fetch)
	if err != nil || len(bands) != 1 {
		t.Fatalf("expected retry to succeed, got %v, %v", bands, err)
	}
}
