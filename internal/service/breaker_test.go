package service

import (
	"errors"
	"testing"
	"time"
)

var errInfra = errors.New("redis: connection refused")

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Run(func() error { return errInfra }); err == nil {
			t.Fatalf("failure %d should return the error", i+1)
		}
	}

	if !b.IsOpen() {
		t.Fatal("breaker should be open after 3 consecutive failures")
	}
}

func TestBreaker_FailsFastWhenOpen(t *testing.T) {
	b := NewBreaker("test", 1, time.Minute)

	_ = b.Run(func() error { return errInfra })
	if !b.IsOpen() {
		t.Fatal("breaker should be open")
	}

	called := false
	err := b.Run(func() error {
		called = true
		return nil
	})

	if called {
		t.Error("open breaker must not execute the function")
	}
	if !IsOpenErr(err) {
		t.Errorf("expected the open-breaker rejection, got %v", err)
	}
}

func TestBreaker_SuccessesKeepItClosed(t *testing.T) {
	b := NewBreaker("test", 2, time.Minute)

	for i := 0; i < 10; i++ {
		if err := b.Run(func() error { return nil }); err != nil {
			t.Fatalf("success %d returned error: %v", i+1, err)
		}
	}

	if b.IsOpen() {
		t.Fatal("breaker opened on successes")
	}
}

func TestBreaker_ProbeClosesAfterCooldown(t *testing.T) {
	b := NewBreaker("test", 1, 20*time.Millisecond)

	_ = b.Run(func() error { return errInfra })
	if !b.IsOpen() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(30 * time.Millisecond)

	// First call after the cool-down is the half-open probe.
	if err := b.Run(func() error { return nil }); err != nil {
		t.Fatalf("probe returned error: %v", err)
	}
	if b.IsOpen() {
		t.Fatal("breaker should close after a successful probe")
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := NewBreaker("test", 1, 20*time.Millisecond)

	_ = b.Run(func() error { return errInfra })
	time.Sleep(30 * time.Millisecond)

	_ = b.Run(func() error { return errInfra })
	if !b.IsOpen() {
		t.Fatal("breaker should reopen after a failed probe")
	}
}

func TestIsOpenErr_OrdinaryErrorsAreNot(t *testing.T) {
	if IsOpenErr(errInfra) {
		t.Error("an infra error is not the open-breaker rejection")
	}
	if IsOpenErr(nil) {
		t.Error("nil is not the open-breaker rejection")
	}
}
