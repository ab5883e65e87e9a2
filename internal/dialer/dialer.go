// Package dialer opens connections over a resolved transport.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"

	"github.com/wadahiro/apiaccess/internal/log"
	"github.com/wadahiro/apiaccess/internal/transport"
)

var logger = log.For(log.ComponentDialer)

var (
	// ErrNoTransport is returned when asked to dial over transport.None.
	ErrNoTransport = errors.New("no transport to dial over")
	// ErrShadowsocksUnsupported is returned when a Shadowsocks transport
	// cannot be dialed, either because no ShadowsocksDialer is configured or
	// because it does not implement the cipher.
	ErrShadowsocksUnsupported = errors.New("shadowsocks transport not supported")
)

// DefaultDialTimeout bounds the TCP connect to the API or the proxy.
const DefaultDialTimeout = 10 * time.Second

// ShadowsocksDialer opens connections through a Shadowsocks server.
type ShadowsocksDialer interface {
	DialContext(ctx context.Context, cfg transport.ShadowsocksConfiguration, network, address string) (net.Conn, error)
}

// Dialer connects to an address over any transport variant.
type Dialer struct {
	base        *net.Dialer
	shadowsocks ShadowsocksDialer
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithTimeout sets the TCP connect timeout.
func WithTimeout(d time.Duration) Option {
	return func(dl *Dialer) {
		dl.base.Timeout = d
	}
}

// WithShadowsocksDialer replaces the built-in Shadowsocks client. Passing nil
// disables Shadowsocks transports.
func WithShadowsocksDialer(sd ShadowsocksDialer) Option {
	return func(dl *Dialer) {
		dl.shadowsocks = sd
	}
}

// New creates a dialer with the built-in Shadowsocks client.
func New(opts ...Option) *Dialer {
	d := &Dialer{base: &net.Dialer{Timeout: DefaultDialTimeout}}
	d.shadowsocks = &AEADDialer{Base: d.base}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DialContext connects to address over t.
func (d *Dialer) DialContext(ctx context.Context, t transport.Transport, network, address string) (net.Conn, error) {
	logger.Debug("Dialing", "transport", t.String(), "address", address)

	switch t.Kind() {
	case transport.KindDirect:
		return d.base.DialContext(ctx, network, address)

	case transport.KindSocks5:
		cfg, _ := t.Socks5()
		return d.dialSocks5(ctx, cfg, network, address)

	case transport.KindShadowsocks:
		cfg, _ := t.Shadowsocks()
		if d.shadowsocks == nil {
			return nil, ErrShadowsocksUnsupported
		}
		return d.shadowsocks.DialContext(ctx, cfg, network, address)

	default:
		return nil, ErrNoTransport
	}
}

func (d *Dialer) dialSocks5(ctx context.Context, cfg transport.Socks5Configuration, network, address string) (net.Conn, error) {
	var auth *proxy.Auth
	if cfg.HasAuthentication() {
		auth = &proxy.Auth{
			User:     cfg.Authentication.Username,
			Password: cfg.Authentication.Password,
		}
	}

	pd, err := proxy.SOCKS5("tcp", cfg.Endpoint, auth, d.base)
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}
	cd, ok := pd.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}
	conn, err := cd.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", cfg.Endpoint, err)
	}
	return conn, nil
}
