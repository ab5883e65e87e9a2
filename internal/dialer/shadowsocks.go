package dialer

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/shadowsocks/go-shadowsocks2/core"
	"github.com/shadowsocks/go-shadowsocks2/socks"

	"github.com/wadahiro/apiaccess/internal/transport"
)

// AEADDialer is a Shadowsocks TCP client for the AEAD ciphers
// (aes-128-gcm, aes-256-gcm, chacha20-ietf-poly1305).
type AEADDialer struct {
	Base *net.Dialer
}

// DialContext implements ShadowsocksDialer.
func (a *AEADDialer) DialContext(ctx context.Context, cfg transport.ShadowsocksConfiguration, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("%w: network %s", ErrShadowsocksUnsupported, network)
	}

	ciph, err := core.PickCipher(cfg.Cipher, nil, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher %s: %w", ErrShadowsocksUnsupported, cfg.Cipher, err)
	}
	target := socks.ParseAddr(address)
	if target == nil {
		return nil, fmt.Errorf("invalid target address %q", address)
	}

	base := a.Base
	if base == nil {
		base = &net.Dialer{Timeout: DefaultDialTimeout}
	}
	rc, err := base.DialContext(ctx, "tcp", cfg.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("shadowsocks %s: %w", cfg.Endpoint(), err)
	}

	conn := ciph.StreamConn(rc)
	if _, err := conn.Write(target); err != nil {
		rc.Close()
		return nil, fmt.Errorf("shadowsocks %s: failed to send target: %w", cfg.Endpoint(), err)
	}
	return conn, nil
}

var _ ShadowsocksDialer = (*AEADDialer)(nil)
