// Package transport resolves the current access method into a concrete
// transport descriptor and rotates between methods on failure.
package transport

import (
	"fmt"
	"net"
	"strconv"

	"github.com/wadahiro/apiaccess/internal/accessmethod"
)

// Kind tags the Transport variants.
type Kind string

const (
	KindNone        Kind = "none"
	KindDirect      Kind = "direct"
	KindShadowsocks Kind = "shadowsocks"
	KindSocks5      Kind = "socks5"
)

// ShadowsocksConfiguration holds resolved Shadowsocks parameters, whether
// they were user-entered or provisioned by the bridge loader.
type ShadowsocksConfiguration struct {
	Address  string
	Port     int
	Password string
	Cipher   string
}

// Endpoint returns address:port.
func (c ShadowsocksConfiguration) Endpoint() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Socks5Configuration holds resolved SOCKS5 parameters.
type Socks5Configuration struct {
	Endpoint       string
	Authentication accessmethod.Authentication
}

// HasAuthentication reports whether username/password auth is required.
func (c Socks5Configuration) HasAuthentication() bool {
	return c.Authentication.IsUsernamePassword()
}

// Transport is the result of one resolution round. The zero value is None.
type Transport struct {
	kind        Kind
	shadowsocks ShadowsocksConfiguration
	socks5      Socks5Configuration
}

// None signals that nothing usable could be resolved this round. Callers
// should back off and try again.
func None() Transport {
	return Transport{}
}

// Direct connects without a proxy.
func Direct() Transport {
	return Transport{kind: KindDirect}
}

// Shadowsocks wraps Shadowsocks parameters.
func Shadowsocks(cfg ShadowsocksConfiguration) Transport {
	return Transport{kind: KindShadowsocks, shadowsocks: cfg}
}

// Socks5 wraps SOCKS5 parameters.
func Socks5(cfg Socks5Configuration) Transport {
	return Transport{kind: KindSocks5, socks5: cfg}
}

// Kind returns the variant tag.
func (t Transport) Kind() Kind {
	if t.kind == "" {
		return KindNone
	}
	return t.kind
}

// IsNone reports whether t is None.
func (t Transport) IsNone() bool {
	return t.Kind() == KindNone
}

// Shadowsocks returns the Shadowsocks parameters.
func (t Transport) Shadowsocks() (ShadowsocksConfiguration, bool) {
	return t.shadowsocks, t.kind == KindShadowsocks
}

// Socks5 returns the SOCKS5 parameters.
func (t Transport) Socks5() (Socks5Configuration, bool) {
	return t.socks5, t.kind == KindSocks5
}

// Equal compares variant and parameters.
func (t Transport) Equal(other Transport) bool {
	return t == other
}

// String never includes passwords.
func (t Transport) String() string {
	switch t.Kind() {
	case KindShadowsocks:
		return fmt.Sprintf("shadowsocks %s (%s)", t.shadowsocks.Endpoint(), t.shadowsocks.Cipher)
	case KindSocks5:
		if t.socks5.HasAuthentication() {
			return fmt.Sprintf("socks5 %s (user %s)", t.socks5.Endpoint, t.socks5.Authentication.Username)
		}
		return "socks5 " + t.socks5.Endpoint
	default:
		return string(t.Kind())
	}
}

// FromMethod resolves the static part of a method. Bridges methods need the
// loader and report false.
func FromMethod(m accessmethod.Method) (Transport, bool) {
	switch m.Kind() {
	case accessmethod.KindDirect:
		return Direct(), true
	case accessmethod.KindShadowsocks:
		cfg, _ := m.Proxy.Shadowsocks()
		return Shadowsocks(ShadowsocksConfiguration{
			Address:  cfg.Server,
			Port:     cfg.Port,
			Password: cfg.Password,
			Cipher:   cfg.Cipher,
		}), true
	case accessmethod.KindSocks5:
		cfg, _ := m.Proxy.Socks5()
		return Socks5(Socks5Configuration{
			Endpoint:       cfg.Endpoint(),
			Authentication: cfg.Authentication,
		}), true
	default:
		return None(), false
	}
}
