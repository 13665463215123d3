package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/netecs/internal/core/protocol"
)

var _ protocol.Dialer = (*Dialer)(nil)

// Dialer connects to a host websocket url such as ws://127.0.0.1:7400/ws.
type Dialer struct {
	Config protocol.Config
	Header http.Header
}

func NewDialer(config protocol.Config) *Dialer {
	return &Dialer{Config: config}
}

func (d *Dialer) Dial(ctx context.Context, url string) (protocol.Connection, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(protocol.ErrDialFailed, "%s: %v", url, err)
	}
	return NewConnection(conn, d.Config), nil
}
