package service

import (
	"testing"
	"time"
)

func TestLoginRateLimiter_AllowsUpToMax(t *testing.T) {
	limiter := NewLoginRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("a@b.com") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if limiter.Allow("a@b.com") {
		t.Fatalf("fourth attempt should be rejected")
	}
}

func TestLoginRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewLoginRateLimiter(time.Minute, 1)

	if !limiter.Allow("a@b.com") {
		t.Fatalf("first key should be allowed")
	}
	if !limiter.Allow("c@d.com") {
		t.Fatalf("second key should be allowed")
	}
	if limiter.Allow("a@b.com") {
		t.Fatalf("first key should be exhausted")
	}
}

func TestLoginRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewLoginRateLimiter(10*time.Millisecond, 1)

	if !limiter.Allow("a@b.com") {
		t.Fatalf("first attempt should be allowed")
	}
	if limiter.Allow("a@b.com") {
		t.Fatalf("second attempt inside window should be rejected")
	}
	time.Sleep(15 * time.Millisecond)
	if !limiter.Allow("a@b.com") {
		t.Fatalf("attempt after window should be allowed")
	}
}
