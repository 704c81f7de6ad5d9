package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWindow(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	defer l.Stop()
	l.now = func() time.Time { return now }

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("u1") {
		t.Fatal("third request inside the window should be limited")
	}
	if !l.Allow("u2") {
		t.Fatal("other keys have their own bucket")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow("u1") {
		t.Fatal("request after the window should pass")
	}
}

func TestAllowEmptyKey(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()
	for i := 0; i < 5; i++ {
		if !l.Allow("") {
			t.Fatal("empty key is never limited")
		}
	}
}

func TestAllowStrictSeparateBucket(t *testing.T) {
	l := NewLimiter(10, time.Minute)
	defer l.Stop()

	if !l.AllowStrict("1.2.3.4", 1, time.Minute) {
		t.Fatal("first strict request should pass")
	}
	if l.AllowStrict("1.2.3.4", 1, time.Minute) {
		t.Fatal("second strict request should be limited")
	}
	if !l.Allow("1.2.3.4") {
		t.Fatal("strict bucket must not consume the default bucket")
	}
}
