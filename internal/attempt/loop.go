// Package attempt drives connection attempts against the API, asking the
// transport strategy for a transport and reporting failures back to it.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wadahiro/apiaccess/internal/clock"
	"github.com/wadahiro/apiaccess/internal/log"
	"github.com/wadahiro/apiaccess/internal/transport"
)

var logger = log.For(log.ComponentAttempt)

var (
	// ErrAttemptsExhausted is returned when MaxAttempts attempts failed.
	ErrAttemptsExhausted = errors.New("connection attempts exhausted")
	// ErrNoTransportThisRound is recorded for rounds where the strategy had
	// nothing usable to offer.
	ErrNoTransportThisRound = errors.New("no usable transport this round")
)

// Strategy is the part of transport.Strategy the loop depends on.
type Strategy interface {
	ConnectionTransport(ctx context.Context) transport.Transport
	DidFail(ctx context.Context)
}

// Connector performs one connection attempt over t.
type Connector interface {
	Connect(ctx context.Context, t transport.Transport) error
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, t transport.Transport) error

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, t transport.Transport) error {
	return f(ctx, t)
}

// Attempt describes one finished round.
type Attempt struct {
	Number    int
	Transport transport.Transport
	Err       error
	// Blocked is set when Err looks like the network blocking the route.
	Blocked bool
	// Backoff is the wait before the next round, zero after the last one.
	Backoff time.Duration
}

// Default loop settings.
const (
	DefaultMaxAttempts    = 6
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Loop runs attempts until one succeeds, MaxAttempts is reached or the
// context is done.
type Loop struct {
	strategy       Strategy
	connector      Connector
	clock          clock.Clock
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	observer       func(Attempt)
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxAttempts bounds the number of rounds. Zero or less means unbounded.
func WithMaxAttempts(n int) Option {
	return func(l *Loop) {
		l.maxAttempts = n
	}
}

// WithBackoff sets the exponential backoff range.
func WithBackoff(initial, max time.Duration) Option {
	return func(l *Loop) {
		l.initialBackoff = initial
		l.maxBackoff = max
	}
}

// WithClock sets the time source used for backoff waits.
func WithClock(c clock.Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithObserver registers a callback invoked after every round.
func WithObserver(fn func(Attempt)) Option {
	return func(l *Loop) {
		l.observer = fn
	}
}

// NewLoop creates a loop.
func NewLoop(strategy Strategy, connector Connector, opts ...Option) *Loop {
	l := &Loop{
		strategy:       strategy,
		connector:      connector,
		clock:          clock.RealClock{},
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run returns the transport of the first successful attempt.
//
// A failed attempt is reported to the strategy exactly once. An attempt
// abandoned because ctx is done is not reported.
func (l *Loop) Run(ctx context.Context) (transport.Transport, error) {
	var lastErr error
	for n := 1; l.maxAttempts <= 0 || n <= l.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return transport.None(), err
		}

		a := Attempt{Number: n, Transport: l.strategy.ConnectionTransport(ctx)}
		if a.Transport.IsNone() {
			a.Err = ErrNoTransportThisRound
		} else {
			err := l.connector.Connect(ctx, a.Transport)
			if err == nil {
				logger.Info("Connected", "attempt", n, "transport", a.Transport.String())
				l.notify(a)
				return a.Transport, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return transport.None(), ctxErr
			}
			a.Err = err
			a.Blocked = IsBlockedError(err)
			l.strategy.DidFail(ctx)
		}
		lastErr = a.Err

		if l.maxAttempts > 0 && n == l.maxAttempts {
			logger.Warn("Attempt failed", "attempt", n, "transport", a.Transport.String(), "blocked", a.Blocked, "error", a.Err)
			l.notify(a)
			break
		}

		a.Backoff = l.backoff(n)
		logger.Warn("Attempt failed, retrying", "attempt", n, "transport", a.Transport.String(),
			"blocked", a.Blocked, "error", a.Err, "backoff", a.Backoff)
		l.notify(a)

		select {
		case <-ctx.Done():
			return transport.None(), ctx.Err()
		case <-l.clock.After(a.Backoff):
		}
	}
	return transport.None(), fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, l.maxAttempts, lastErr)
}

func (l *Loop) notify(a Attempt) {
	if l.observer != nil {
		l.observer(a)
	}
}

// backoff returns initial * 2^(n-1), capped at max.
func (l *Loop) backoff(n int) time.Duration {
	if l.initialBackoff <= 0 {
		return 0
	}
	d := l.initialBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if l.maxBackoff > 0 && d >= l.maxBackoff {
			return l.maxBackoff
		}
	}
	if l.maxBackoff > 0 && d > l.maxBackoff {
		return l.maxBackoff
	}
	return d
}
