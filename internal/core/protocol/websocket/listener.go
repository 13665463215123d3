package websocket

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
)

var _ protocol.Listener = (*Listener)(nil)

// Listener is an http.Handler upgrading requests to websocket connections
// handed out by Accept. Mount it on a mux, or use Listen to serve it alone.
type Listener struct {
	config   protocol.Config
	upgrader websocket.Upgrader
	logger   log.Log

	conns     chan *Connection
	done      chan struct{}
	closeOnce sync.Once

	server *http.Server
	ln     net.Listener
}

func NewListener(config protocol.Config, logger log.Log) *Listener {
	if logger == nil {
		logger = log.Provide()
	}
	return &Listener{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(log.String("transport", string(protocol.TransportWebSocket))),
		conns:  make(chan *Connection),
		done:   make(chan struct{}),
	}
}

// Listen serves a new Listener on addr at every path.
func Listen(addr string, config protocol.Config, logger log.Log) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(protocol.ErrListenFailed, err.Error())
	}
	l := NewListener(config, logger)
	l.ln = ln
	l.server = &http.Server{Handler: l}
	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("websocket server stopped", log.Error(err))
		}
	}()
	l.logger.Info("websocket listener started", log.String("addr", ln.Addr().String()))
	return l, nil
}

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Warn("websocket upgrade failed",
			log.String("remote_addr", r.RemoteAddr),
			log.Error(err),
		)
		return
	}
	c := NewConnection(conn, l.config)
	select {
	case l.conns <- c:
		l.logger.Debug("websocket connection accepted",
			log.String("connection_id", c.ID()),
			log.String("remote_addr", r.RemoteAddr),
		)
	case <-l.done:
		_ = c.CloseWithReason("listener closed")
	}
}

func (l *Listener) Accept(ctx context.Context) (protocol.Connection, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, protocol.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr returns the served address, or nil for a mounted handler.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		if l.server != nil {
			err = l.server.Close()
		}
	})
	return err
}
