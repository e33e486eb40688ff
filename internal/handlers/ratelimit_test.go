package handlers

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("attempt %d: expected allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("attempt over the limit: expected refused")
	}
	// a different client is counted separately
	if !rl.Allow("10.0.0.2") {
		t.Fatal("unrelated client: expected allowed")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first attempt: expected allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("second attempt inside window: expected refused")
	}

	deadline := time.Now().Add(time.Second)
	for !rl.Allow("10.0.0.1") {
		if time.Now().After(deadline) {
			t.Fatal("window never reset")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRateLimiter_ConcurrentCallers(t *testing.T) {
	rl := NewRateLimiter(50, time.Hour)

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- rl.Allow("10.0.0.1")
		}()
	}
	wg.Wait()
	close(allowed)

	granted := 0
	for ok := range allowed {
		if ok {
			granted++
		}
	}
	if granted != 50 {
		t.Fatalf("expected exactly 50 grants, got %d", granted)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr with port", "192.0.2.7:51234", "", "192.0.2.7"},
		{"forwarded single hop", "10.0.0.1:80", "203.0.113.5", "203.0.113.5"},
		{"forwarded chain uses first hop", "10.0.0.1:80", "203.0.113.5, 10.0.0.2", "203.0.113.5"},
		{"forwarded with spaces", "10.0.0.1:80", " 203.0.113.5 , 10.0.0.2", "203.0.113.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
