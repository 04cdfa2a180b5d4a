package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow when the breaker is short-circuiting calls.
var ErrOpen = errors.New("circuit breaker is open")

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// WindowSize is the number of recent call outcomes kept in the sliding window.
	WindowSize int
	// MinimumCalls is the number of recorded calls required before the failure
	// rate is evaluated at all.
	MinimumCalls int
	// FailureRateThreshold opens the breaker when the windowed failure rate
	// reaches it (0..1].
	FailureRateThreshold float64
	// OpenTimeout is the cooldown before an open breaker lets probes through.
	OpenTimeout time.Duration
	// HalfOpenMaxCalls is the number of probe calls permitted in half-open
	// state; that many consecutive successes close the breaker.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig mirrors common sliding-window breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		WindowSize:           10,
		MinimumCalls:         5,
		FailureRateThreshold: 0.5,
		OpenTimeout:          10 * time.Second,
		HalfOpenMaxCalls:     3,
	}
}

// CircuitBreaker is a sliding-window failure-rate breaker:
// CLOSED -> (failure rate over threshold) -> OPEN -> (cooldown) -> HALF_OPEN
// -> (probes succeed) -> CLOSED, or (probe fails) -> OPEN again.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu                sync.Mutex
	state             State
	window            []bool // true = failure
	windowIdx         int
	windowCount       int
	openedAt          time.Time
	halfOpenInFlight  int
	halfOpenSuccesses int
}

// NewCircuitBreaker creates a breaker with the given configuration.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultBreakerConfig().WindowSize
	}
	if cfg.MinimumCalls <= 0 {
		cfg.MinimumCalls = DefaultBreakerConfig().MinimumCalls
	}
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = DefaultBreakerConfig().FailureRateThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = DefaultBreakerConfig().HalfOpenMaxCalls
	}
	return &CircuitBreaker{
		cfg:    cfg,
		now:    time.Now,
		window: make([]bool, cfg.WindowSize),
	}
}

// Allow reports whether a call may proceed. It returns ErrOpen when the call
// must be short-circuited to the fallback. Every nil return must be paired
// with exactly one Record call.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrOpen
		}
		b.toHalfOpen()
		b.halfOpenInFlight++
		return nil
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return ErrOpen
		}
		b.halfOpenInFlight++
		return nil
	}
	return nil
}

// Record reports the outcome of a call previously admitted by Allow.
func (b *CircuitBreaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.push(!success)
		if b.windowCount >= b.cfg.MinimumCalls && b.failureRate() >= b.cfg.FailureRateThreshold {
			b.toOpen()
		}
	case StateHalfOpen:
		b.halfOpenInFlight--
		if !success {
			b.toOpen()
			return
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenMaxCalls {
			b.toClosed()
		}
	case StateOpen:
		// A slow call admitted before the breaker opened; its outcome no
		// longer changes the state.
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) push(failure bool) {
	b.window[b.windowIdx] = failure
	b.windowIdx = (b.windowIdx + 1) % len(b.window)
	if b.windowCount < len(b.window) {
		b.windowCount++
	}
}

func (b *CircuitBreaker) failureRate() float64 {
	failures := 0
	for i := 0; i < b.windowCount; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.windowCount)
}

func (b *CircuitBreaker) toOpen() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.halfOpenInFlight = 0
	b.halfOpenSuccesses = 0
}

func (b *CircuitBreaker) toHalfOpen() {
	b.state = StateHalfOpen
	b.halfOpenInFlight = 0
	b.halfOpenSuccesses = 0
}

func (b *CircuitBreaker) toClosed() {
	b.state = StateClosed
	b.windowIdx = 0
	b.windowCount = 0
	for i := range b.window {
		b.window[i] = false
	}
}
