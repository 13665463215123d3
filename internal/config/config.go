// Package config loads the YAML configuration shared by the host and the
// peer binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/netecs/internal/core/observability/log"
	"github.com/zeusync/netecs/internal/core/protocol"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Engine  EngineConfig  `yaml:"engine"`
	Network NetworkConfig `yaml:"network"`
	Game    GameConfig    `yaml:"game"`
}

type LogConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
}

type EngineConfig struct {
	// TickRate is the number of ticks per second.
	TickRate int `yaml:"tick_rate"`
	// Seed fixes the gameplay random source; zero picks one at startup.
	Seed uint64 `yaml:"seed"`
}

type NetworkConfig struct {
	// HostID is the peer id of the host process.
	HostID string `yaml:"host_id"`
	// Token must be presented by peers in their hello; empty disables the check.
	Token string `yaml:"token"`

	// HTTPAddr serves the websocket endpoint and /status on the host.
	HTTPAddr      string `yaml:"http_addr"`
	WebSocketPath string `yaml:"websocket_path"`
	StatusPath    string `yaml:"status_path"`

	// QUICAddr enables the QUIC listener on the host when set.
	QUICAddr string `yaml:"quic_addr"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Transport and URL select what a peer dials.
	Transport protocol.TransportType `yaml:"transport"`
	URL       string                 `yaml:"url"`
	// Insecure skips QUIC certificate verification on peers.
	Insecure       bool          `yaml:"insecure"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	Protocol protocol.Config `yaml:"protocol"`
}

type GameConfig struct {
	// Scene is an optional scene file loaded at startup.
	Scene string `yaml:"scene"`
	// Name is the display name a peer announces.
	Name   string       `yaml:"name"`
	Avatar AvatarConfig `yaml:"avatar"`
	// Autoplay makes a peer send a gameplay request at this interval.
	Autoplay time.Duration `yaml:"autoplay"`
}

type AvatarConfig struct {
	URL          string  `yaml:"url"`
	ThumbnailURL string  `yaml:"thumbnail_url"`
	Height       float64 `yaml:"height"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Engine: EngineConfig{
			TickRate: 60,
		},
		Network: NetworkConfig{
			HostID:         "host",
			HTTPAddr:       "127.0.0.1:7400",
			WebSocketPath:  "/ws",
			StatusPath:     "/status",
			Transport:      protocol.TransportWebSocket,
			URL:            "ws://127.0.0.1:7400/ws",
			ConnectTimeout: 10 * time.Second,
			Protocol:       protocol.DefaultConfig(),
		},
		Game: GameConfig{
			Name:   "player",
			Avatar: AvatarConfig{Height: 1.8},
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Engine.TickRate <= 0 || c.Engine.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("engine.tick_rate must be in (0,1000], got %d", c.Engine.TickRate))
	}
	if c.Network.HostID == "" {
		errs = append(errs, errors.New("network.host_id is required"))
	}
	switch c.Network.Transport {
	case protocol.TransportWebSocket, protocol.TransportQUIC:
	default:
		errs = append(errs, fmt.Errorf("network.transport %q is not supported", c.Network.Transport))
	}
	if (c.Network.CertFile == "") != (c.Network.KeyFile == "") {
		errs = append(errs, errors.New("network.cert_file and network.key_file go together"))
	}
	if c.Game.Avatar.Height < 0 {
		errs = append(errs, errors.New("game.avatar.height must not be negative"))
	}
	if c.Game.Autoplay < 0 {
		errs = append(errs, errors.New("game.autoplay must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// TickInterval is the wall clock duration of one tick.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.TickRate)
}

// LoggerOptions maps the log section onto the logger backend.
func (c Config) LoggerOptions() log.Options {
	return log.Options{
		Level:       log.ParseLevel(c.Log.Level),
		Development: c.Log.Development,
		OutputPaths: c.Log.OutputPaths,
	}
}
