package protocol

import "time"

// TransportType names a wire transport.
type TransportType string

const (
	TransportWebSocket TransportType = "websocket"
	TransportQUIC      TransportType = "quic"
)

// Config holds connection level settings shared by all transports
type Config struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxMessageSize uint32        `yaml:"max_message_size"`
	// KeepAlive is the ping interval; zero disables pings.
	KeepAlive time.Duration `yaml:"keep_alive"`
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout:    0,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 1 << 20,
		KeepAlive:      15 * time.Second,
	}
}

// Metrics provides per connection counters
type Metrics struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
}
