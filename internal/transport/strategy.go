package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/wadahiro/apiaccess/internal/accessmethod"
	"github.com/wadahiro/apiaccess/internal/bridge"
	"github.com/wadahiro/apiaccess/internal/log"
)

var logger = log.For(log.ComponentStrategy)

// DefaultReloadFailureThreshold is the number of consecutive bridge reload
// failures after which the strategy escalates.
const DefaultReloadFailureThreshold = 3

// EscalationFunc is called with the consecutive failure count and the last
// reload error. It runs with the strategy locked and must not call back
// into the strategy.
type EscalationFunc func(count int, err error)

// Strategy picks the transport for the next connection attempt and rotates
// between access methods when attempts fail.
//
// ConnectionTransport and DidFail are serialized; a strategy may be shared by
// several goroutines.
type Strategy struct {
	mu       sync.Mutex
	iterator *accessmethod.Iterator
	loader   bridge.Loader

	threshold      int
	escalate       EscalationFunc
	reloadFailures int
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithReloadFailureThreshold sets after how many consecutive reload failures
// the strategy escalates. Zero or less disables escalation.
func WithReloadFailureThreshold(n int) Option {
	return func(s *Strategy) {
		s.threshold = n
	}
}

// WithReloadEscalation registers a hook for repeated reload failures.
func WithReloadEscalation(fn EscalationFunc) Option {
	return func(s *Strategy) {
		s.escalate = fn
	}
}

// NewStrategy creates a strategy over the methods of ds. loader provides the
// parameters of the bridges method and may be nil when bridges are never
// enabled. It fails with accessmethod.ErrNoEnabledMethods when ds has no
// enabled method.
func NewStrategy(ds accessmethod.DataSource, loader bridge.Loader, opts ...Option) (*Strategy, error) {
	it, err := accessmethod.NewIterator(ds)
	if err != nil {
		return nil, err
	}
	s := &Strategy{
		iterator:  it,
		loader:    loader,
		threshold: DefaultReloadFailureThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ConnectionTransport resolves the current access method. It never fails:
// when the bridge loader has nothing to offer, the strategy rotates away from
// the bridges method and resolves the next one, or returns None if the next
// one is bridges again.
func (s *Strategy) ConnectionTransport(ctx context.Context) Transport {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		m := s.iterator.Pick()
		if t, ok := FromMethod(m); ok {
			logger.Debug("Resolved transport", "method", m.String(), "transport", t.String())
			return t
		}
		if !m.Kind().IsBridge() {
			logger.Error("Unhandled access method kind", "method", m.String())
			return None()
		}

		cfg, err := s.loadBridge(ctx)
		if err == nil {
			s.reloadFailures = 0
			t := Shadowsocks(ShadowsocksConfiguration(cfg))
			logger.Debug("Resolved transport", "method", m.String(), "transport", t.String())
			return t
		}

		logger.Warn("Bridge configuration unavailable, rotating", "method", m.String(), "error", err)
		s.didFail(ctx, m)
		if next := s.iterator.Pick(); next.Kind().IsBridge() {
			logger.Info("Next access method is bridges as well, giving up this round", "method", next.String())
			return None()
		}
	}
}

// DidFail records that the current method failed. The bridges method gets its
// configuration reloaded first; then the cursor always advances.
func (s *Strategy) DidFail(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.didFail(ctx, s.iterator.Pick())
}

// Current returns the method the next ConnectionTransport call will resolve.
func (s *Strategy) Current() accessmethod.Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterator.Pick()
}

// Equal reports whether both strategies currently pick the same method.
func (s *Strategy) Equal(other *Strategy) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Current().Equal(other.Current())
}

// didFail must be called with s.mu held.
func (s *Strategy) didFail(ctx context.Context, current accessmethod.Method) {
	if current.Kind().IsBridge() {
		s.reloadBridge(ctx)
	}
	s.iterator.Rotate()
}

func (s *Strategy) loadBridge(ctx context.Context) (bridge.Configuration, error) {
	if s.loader == nil {
		return bridge.Configuration{}, bridge.ErrNoConfiguration
	}
	return s.loader.Load(ctx)
}

// reloadBridge swallows the reload error and escalates once per threshold
// consecutive failures.
func (s *Strategy) reloadBridge(ctx context.Context) {
	if s.loader == nil {
		return
	}
	err := s.loader.ReloadConfiguration(ctx)
	if err == nil {
		s.reloadFailures = 0
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Debug("Bridge reload cancelled", "error", err)
		return
	}

	s.reloadFailures++
	if s.threshold <= 0 || s.reloadFailures%s.threshold != 0 {
		logger.Warn("Bridge reload failed", "consecutiveFailures", s.reloadFailures, "error", err)
		return
	}
	logger.Error("Bridge reload keeps failing", "consecutiveFailures", s.reloadFailures, "error", err)
	if s.escalate != nil {
		s.escalate(s.reloadFailures, err)
	}
}
