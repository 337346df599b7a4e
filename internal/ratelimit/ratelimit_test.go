package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		perMinute int
		want      time.Duration
	}{
		{60, time.Second},
		{30, 2 * time.Second},
		{120, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := New(tt.perMinute).Interval(); got != tt.want {
			t.Errorf("New(%d).Interval() = %v, want %v", tt.perMinute, got, tt.want)
		}
	}
}

func TestAcquireSpacing(t *testing.T) {
	// 1200/min = 50ms spacing. First acquire is immediate, so 4 acquires
	// take at least 3 intervals.
	l := New(1200)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	elapsed := time.Since(start)

	if min := 3 * l.Interval(); elapsed < min {
		t.Errorf("4 acquires took %v, want at least %v", elapsed, min)
	}
}

func TestAcquireConcurrentSpacing(t *testing.T) {
	l := New(1200)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(times) != 5 {
		t.Fatalf("expected 5 grants, got %d", len(times))
	}
	var first, last time.Time
	for _, ts := range times {
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	if min := 4 * l.Interval(); last.Sub(first) < min-5*time.Millisecond {
		t.Errorf("5 concurrent grants spread over %v, want at least %v", last.Sub(first), min)
	}
}

func TestAcquireCancel(t *testing.T) {
	l := New(1) // 60s spacing: second acquire would block for a long time
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error from cancelled Acquire")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled Acquire did not return")
	}
}
