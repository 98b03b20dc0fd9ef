package webhook

import "testing"

func TestRateLimiterAllowsUnderBudget(t *testing.T) {
	rl := newRateLimiter()
	for i := 0; i < rateLimitMaxHits; i++ {
		if !rl.Allow("inst-a") {
			t.Fatalf("hit %d should be allowed", i)
		}
	}
}

func TestRateLimiterBlocksOverBudget(t *testing.T) {
	rl := newRateLimiter()
	for i := 0; i < rateLimitMaxHits; i++ {
		rl.Allow("inst-a")
	}
	if rl.Allow("inst-a") {
		t.Fatal("hit beyond budget should be blocked")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := newRateLimiter()
	for i := 0; i < rateLimitMaxHits; i++ {
		rl.Allow("inst-a")
	}
	if !rl.Allow("inst-b") {
		t.Fatal("a different key must not be affected by inst-a's budget")
	}
}

func TestRateLimiterCapsTrackedKeys(t *testing.T) {
	rl := newRateLimiter()
	for i := 0; i < maxTrackedKeys; i++ {
		if !rl.Allow(string(rune(i))) {
			t.Fatalf("new key %d should be allowed before the cap is reached", i)
		}
	}
	if rl.Allow("one-too-many") {
		t.Fatal("a brand new key beyond the tracked-key cap should be rejected")
	}
}
