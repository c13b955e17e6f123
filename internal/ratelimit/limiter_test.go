package ratelimit

import (
	"testing"
	"time"
)

func TestAllowUpToLimit(t *testing.T) {
	limiter := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("client-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("client-a") {
		t.Fatal("fourth request must be rejected")
	}
	if limiter.Remaining("client-a") != 0 {
		t.Fatalf("expected 0 remaining, got %d", limiter.Remaining("client-a"))
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter := New(1, time.Minute)
	if !limiter.Allow("client-a") {
		t.Fatal("first request should be allowed")
	}
	if !limiter.Allow("client-b") {
		t.Fatal("a different key must have its own window")
	}
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	limiter := New(1, 20*time.Millisecond)
	if !limiter.Allow("client-a") {
		t.Fatal("first request should be allowed")
	}
	if limiter.Allow("client-a") {
		t.Fatal("second request inside the window must be rejected")
	}
	time.Sleep(40 * time.Millisecond)
	if !limiter.Allow("client-a") {
		t.Fatal("request after expiry must be allowed")
	}
}
