package completion

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the state of the completion circuit breaker
type BreakerState int

const (
	// BreakerClosed is the normal operating state, requests flow through
	BreakerClosed BreakerState = iota
	// BreakerOpen means the API has failed repeatedly, requests are rejected
	BreakerOpen
	// BreakerHalfOpen allows probe requests to test recovery
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is how long to hold the circuit open before probing
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`

	// SuccessThreshold is the number of probe successes before closing
	SuccessThreshold int `yaml:"success_threshold"`

	// OnStateChange is called when the circuit state changes
	OnStateChange func(from, to BreakerState)
}

// DefaultBreakerConfig returns sensible defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Breaker wraps a completion client with a circuit breaker. When the
// upstream API fails repeatedly the circuit opens and requests are rejected
// immediately, so a chat full of users does not pile requests onto a dead
// backend. Rejections and upstream failures both surface as ErrCompletion,
// which the conversation flows degrade to an apology message.
type Breaker struct {
	client Client
	config BreakerConfig

	mu              sync.Mutex
	state           BreakerState
	failures        int
	probeSuccesses  int
	lastStateChange time.Time
}

// NewBreaker wraps client with circuit breaking
func NewBreaker(client Client, config BreakerConfig) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 3
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	return &Breaker{
		client:          client,
		config:          config,
		state:           BreakerClosed,
		lastStateChange: time.Now(),
	}
}

// Complete forwards to the wrapped client unless the circuit is open
func (b *Breaker) Complete(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	if !b.allow() {
		return "", fmt.Errorf("%w: circuit open, completion API unavailable", ErrCompletion)
	}

	answer, err := b.client.Complete(ctx, systemPrompt, turns)
	if err != nil {
		b.recordFailure()
		return "", err
	}
	b.recordSuccess()
	return answer, nil
}

// State returns the current circuit state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.lastStateChange) >= b.config.RecoveryTimeout {
			b.transitionTo(BreakerHalfOpen)
			return true
		}
		return false
	case BreakerHalfOpen:
		return true
	default:
		return false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == BreakerHalfOpen {
		b.probeSuccesses++
		if b.probeSuccesses >= b.config.SuccessThreshold {
			b.transitionTo(BreakerClosed)
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probeSuccesses = 0

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(BreakerOpen)
		}
	case BreakerHalfOpen:
		// The probe failed, back to rejecting
		b.transitionTo(BreakerOpen)
	}
}

// transitionTo changes the circuit state, must hold the lock
func (b *Breaker) transitionTo(newState BreakerState) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState
	b.lastStateChange = time.Now()

	if newState == BreakerClosed {
		b.failures = 0
		b.probeSuccesses = 0
	}

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(oldState, newState)
	}
}
