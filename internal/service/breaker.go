package service

import (
	"errors"
	"log"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// Breaker guards the cache-backed fast path. After enough consecutive
// infrastructure failures it opens, calls fail fast with ErrOpen, and the
// vote service routes to the authoritative store instead. After the
// cool-down one probe is let through; success closes the breaker.
type Breaker struct {
	cb circuitbreaker.CircuitBreaker[any]
}

func NewBreaker(name string, failures int, cooldown time.Duration) *Breaker {
	if failures < 1 {
		failures = 1
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(uint(failures)).
		WithDelay(cooldown).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			log.Printf("breaker %s: %s -> %s", name, event.OldState, event.NewState)
		}).
		Build()

	return &Breaker{cb: cb}
}

// Run executes fn through the breaker. Rejections and other non-infra
// outcomes must not be returned as errors from fn, or they would count as
// failures and trip the breaker on user behavior.
func (b *Breaker) Run(fn func() error) error {
	_, err := failsafe.With(b.cb).Get(func() (any, error) {
		return nil, fn()
	})
	return err
}

// IsOpen reports whether the fast path is currently bypassed.
func (b *Breaker) IsOpen() bool {
	return b.cb.IsOpen()
}

// IsOpenErr reports whether err is the breaker's fail-fast rejection.
func IsOpenErr(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen)
}
