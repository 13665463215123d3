package quic

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
)

var _ protocol.Listener = (*Listener)(nil)

// Listener implements protocol.Listener for QUIC
type Listener struct {
	listener *quic.Listener
	config   protocol.Config
	closed   atomic.Bool
	logger   log.Log
}

// Listen starts a QUIC listener on addr. tlsConfig must carry a certificate.
func Listen(addr string, tlsConfig *tls.Config, config protocol.Config, logger log.Log) (*Listener, error) {
	if logger == nil {
		logger = log.Provide()
	}
	ln, err := quic.ListenAddr(addr, tlsConfig, buildQUICConfig(config))
	if err != nil {
		return nil, errors.Wrapf(protocol.ErrListenFailed, "%s: %v", addr, err)
	}
	l := &Listener{
		listener: ln,
		config:   config,
		logger:   logger.With(log.String("listener_addr", ln.Addr().String())),
	}
	l.logger.Info("QUIC listener created")
	return l, nil
}

// Accept waits for the next QUIC connection
func (l *Listener) Accept(ctx context.Context) (protocol.Connection, error) {
	if l.closed.Load() {
		return nil, protocol.ErrTransportClosed
	}
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		if l.closed.Load() || errors.Is(err, quic.ErrServerClosed) {
			return nil, protocol.ErrTransportClosed
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logger.Error("Failed to accept QUIC connection", log.Error(err))
		return nil, protocol.WrapError(err, "failed to accept QUIC connection")
	}

	l.logger.Debug("QUIC connection accepted", log.String("remote_addr", conn.RemoteAddr().String()))
	return newConnection(conn, nil, l.config), nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.logger.Info("Closing QUIC listener")
	return l.listener.Close()
}
