package quic

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/netecs/internal/core/protocol"
)

var _ protocol.Dialer = (*Dialer)(nil)

// Dialer opens QUIC connections to a host address such as 127.0.0.1:7401.
type Dialer struct {
	TLS    *tls.Config
	Config protocol.Config
}

func NewDialer(tlsConfig *tls.Config, config protocol.Config) *Dialer {
	if tlsConfig == nil {
		tlsConfig = ClientTLS(false)
	}
	return &Dialer{TLS: tlsConfig, Config: config}
}

func (d *Dialer) Dial(ctx context.Context, addr string) (protocol.Connection, error) {
	tlsConfig := d.TLS.Clone()
	if tlsConfig.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			tlsConfig.ServerName = host
		} else {
			tlsConfig.ServerName = addr
		}
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, buildQUICConfig(d.Config))
	if err != nil {
		return nil, errors.Wrapf(protocol.ErrDialFailed, "%s: %v", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	return newConnection(conn, stream, d.Config), nil
}
