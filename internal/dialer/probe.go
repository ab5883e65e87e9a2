package dialer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/wadahiro/apiaccess/internal/transport"
)

// Probe checks that the API address is reachable over a transport. It
// implements attempt.Connector.
type Probe struct {
	Dialer  *Dialer
	Address string
	Timeout time.Duration
	// TLS completes a TLS handshake with the API after connecting.
	TLS bool
}

// Connect dials Address over t and closes the connection again.
func (p *Probe) Connect(ctx context.Context, t transport.Transport) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	d := p.Dialer
	if d == nil {
		d = New()
	}
	conn, err := d.DialContext(ctx, t, "tcp", p.Address)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !p.TLS {
		return nil
	}
	host, _, err := net.SplitHostPort(p.Address)
	if err != nil {
		return fmt.Errorf("invalid api address %q: %w", p.Address, err)
	}
	tc := tls.Client(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err := tc.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("tls handshake with %s: %w", p.Address, err)
	}
	return nil
}
