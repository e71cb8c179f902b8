package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesTokens(t *testing.T) {
	l := New(time.Minute)
	for i := 0; i < 5; i++ {
		if !l.Allow("client", 5) {
			t.Fatalf("request %d denied within limit", i+1)
		}
	}
	if l.Allow("client", 5) {
		t.Error("request over limit allowed")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(time.Minute)
	for i := 0; i < 3; i++ {
		l.Allow("a", 3)
	}
	if l.Allow("a", 3) {
		t.Error("exhausted key allowed")
	}
	if !l.Allow("b", 3) {
		t.Error("fresh key denied")
	}
}

func TestResetRestoresCapacity(t *testing.T) {
	l := New(time.Minute)
	for i := 0; i < 3; i++ {
		l.Allow("client", 3)
	}
	l.Reset("client")
	if !l.Allow("client", 3) {
		t.Error("request denied after reset")
	}
}

func TestTokensRefill(t *testing.T) {
	l := New(100 * time.Millisecond)
	for i := 0; i < 2; i++ {
		l.Allow("client", 2)
	}
	if l.Allow("client", 2) {
		t.Fatal("expected exhaustion")
	}
	time.Sleep(120 * time.Millisecond)
	if !l.Allow("client", 2) {
		t.Error("request denied after refill window")
	}
}
