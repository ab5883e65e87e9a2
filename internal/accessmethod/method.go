// Package accessmethod models the configured ways of reaching the API and the
// cursor that rotates between them.
package accessmethod

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Kind classifies an access method by its proxy configuration.
type Kind string

const (
	KindDirect      Kind = "direct"
	KindBridges     Kind = "bridges"
	KindShadowsocks Kind = "shadowsocks"
	KindSocks5      Kind = "socks5"
)

// ParseKind converts a settings string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindDirect, KindBridges, KindShadowsocks, KindSocks5:
		return k, nil
	default:
		return "", fmt.Errorf("unknown access method type: %q", s)
	}
}

// IsBridge reports whether the method's parameters are provisioned by the
// bridge loader rather than stored in settings.
func (k Kind) IsBridge() bool {
	return k == KindBridges
}

// IsCustom reports whether the method is a user-entered proxy.
func (k Kind) IsCustom() bool {
	return k == KindShadowsocks || k == KindSocks5
}

func (k Kind) String() string {
	return string(k)
}

// Shadowsocks holds user-entered Shadowsocks bridge parameters.
type Shadowsocks struct {
	Server   string
	Port     int
	Password string
	Cipher   string
}

// Endpoint returns server:port.
func (s Shadowsocks) Endpoint() string {
	return net.JoinHostPort(s.Server, strconv.Itoa(s.Port))
}

// Authentication is the SOCKS5 authentication variant. The zero value means
// no authentication.
type Authentication struct {
	usernamePassword bool
	// Username and Password are only meaningful for username/password auth.
	Username string
	Password string
}

// NoAuthentication returns the no-authentication variant.
func NoAuthentication() Authentication {
	return Authentication{}
}

// UsernamePassword returns the username/password variant.
func UsernamePassword(username, password string) Authentication {
	return Authentication{usernamePassword: true, Username: username, Password: password}
}

// IsUsernamePassword reports whether credentials must be offered to the proxy.
func (a Authentication) IsUsernamePassword() bool {
	return a.usernamePassword
}

// Socks5 holds user-entered SOCKS5 proxy parameters.
type Socks5 struct {
	Server         string
	Port           int
	Authentication Authentication
}

// Endpoint returns server:port.
func (s Socks5) Endpoint() string {
	return net.JoinHostPort(s.Server, strconv.Itoa(s.Port))
}

// ProxyConfiguration is a closed union over the four proxy variants.
// Construct it with DirectProxy, BridgesProxy, ShadowsocksProxy or Socks5Proxy.
type ProxyConfiguration struct {
	kind        Kind
	shadowsocks Shadowsocks
	socks5      Socks5
}

// DirectProxy connects without any proxy. It equals the zero value.
func DirectProxy() ProxyConfiguration {
	return ProxyConfiguration{}
}

// BridgesProxy marks a method whose parameters come from the bridge loader.
func BridgesProxy() ProxyConfiguration {
	return ProxyConfiguration{kind: KindBridges}
}

// ShadowsocksProxy wraps static Shadowsocks parameters.
func ShadowsocksProxy(cfg Shadowsocks) ProxyConfiguration {
	return ProxyConfiguration{kind: KindShadowsocks, shadowsocks: cfg}
}

// Socks5Proxy wraps static SOCKS5 parameters.
func Socks5Proxy(cfg Socks5) ProxyConfiguration {
	return ProxyConfiguration{kind: KindSocks5, socks5: cfg}
}

// Kind returns the variant tag. The zero ProxyConfiguration is direct.
func (p ProxyConfiguration) Kind() Kind {
	if p.kind == "" {
		return KindDirect
	}
	return p.kind
}

// Shadowsocks returns the static Shadowsocks parameters.
func (p ProxyConfiguration) Shadowsocks() (Shadowsocks, bool) {
	return p.shadowsocks, p.kind == KindShadowsocks
}

// Socks5 returns the static SOCKS5 parameters.
func (p ProxyConfiguration) Socks5() (Socks5, bool) {
	return p.socks5, p.kind == KindSocks5
}

// Method is one configured way to reach the API.
type Method struct {
	ID      string
	Name    string
	Enabled bool
	Proxy   ProxyConfiguration
}

// Kind is derived from the proxy configuration, so a bridges kind always
// carries the bridges marker.
func (m Method) Kind() Kind {
	return m.Proxy.Kind()
}

// Equal compares every field.
func (m Method) Equal(other Method) bool {
	return m == other
}

// String is safe to log; it never includes credentials.
func (m Method) String() string {
	name := m.Name
	if name == "" {
		name = m.ID
	}
	return fmt.Sprintf("%s (%s)", name, m.Kind())
}

// Well-known IDs of the built-in methods.
const (
	DirectID  = "00000000-0000-0000-0000-000000000001"
	BridgesID = "00000000-0000-0000-0000-000000000002"
)

// Direct returns the built-in direct method.
func Direct() Method {
	return Method{ID: DirectID, Name: "Direct", Enabled: true, Proxy: DirectProxy()}
}

// Bridges returns the built-in bridges method.
func Bridges() Method {
	return Method{ID: BridgesID, Name: "Bridges", Enabled: true, Proxy: BridgesProxy()}
}

// Validation errors.
var (
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrUnknownCipher   = errors.New("unknown cipher")
	ErrMissingUsername = errors.New("username required for username/password authentication")
)

// Ciphers lists the Shadowsocks ciphers a custom bridge may use.
var Ciphers = map[string]bool{
	"aes-128-cfb":             true,
	"aes-128-cfb1":            true,
	"aes-128-cfb8":            true,
	"aes-128-cfb128":          true,
	"aes-256-cfb":             true,
	"aes-256-cfb1":            true,
	"aes-256-cfb8":            true,
	"aes-256-cfb128":          true,
	"rc4":                     true,
	"rc4-md5":                 true,
	"chacha20":                true,
	"salsa20":                 true,
	"chacha20-ietf":           true,
	"aes-128-gcm":             true,
	"aes-256-gcm":             true,
	"chacha20-ietf-poly1305":  true,
	"xchacha20-ietf-poly1305": true,
	"aes-128-pmac-siv":        true,
	"aes-256-pmac-siv":        true,
}

// Validate checks the static parameters of custom proxies.
func (m Method) Validate() error {
	if m.ID == "" {
		return errors.New("access method id is empty")
	}
	switch m.Kind() {
	case KindShadowsocks:
		cfg, _ := m.Proxy.Shadowsocks()
		if err := validateEndpoint(cfg.Server, cfg.Port); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		if !Ciphers[cfg.Cipher] {
			return fmt.Errorf("%s: %w: %q", m, ErrUnknownCipher, cfg.Cipher)
		}
	case KindSocks5:
		cfg, _ := m.Proxy.Socks5()
		if err := validateEndpoint(cfg.Server, cfg.Port); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		if cfg.Authentication.IsUsernamePassword() && cfg.Authentication.Username == "" {
			return fmt.Errorf("%s: %w", m, ErrMissingUsername)
		}
	}
	return nil
}

func validateEndpoint(server string, port int) error {
	if server == "" {
		return fmt.Errorf("%w: empty server", ErrInvalidEndpoint)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, port)
	}
	return nil
}
