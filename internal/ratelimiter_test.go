package internal

import (
	"testing"
	"time"
)

func TestRateLimiterEnforcesLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("fourth call inside the window should be rejected")
	}
	// other keys are tracked independently.
	if !limiter.Allow("5.6.7.8") {
		t.Fatal("different key should not share the budget")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter(1, 30*time.Millisecond)
	if !limiter.Allow("k") {
		t.Fatal("first call should pass")
	}
	if limiter.Allow("k") {
		t.Fatal("second immediate call should be rejected")
	}
	time.Sleep(40 * time.Millisecond)
	if !limiter.Allow("k") {
		t.Fatal("call after the window expired should pass")
	}
}
