package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain    = "warpcall.qzz.io"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultTURN      = "warpcall.qzz.io" // Host only, ports and schemes are added per transport
	DefaultTURNUser  = "warpcall"
	DefaultTURNPass  = "warpcall-secret"
	DefaultCodec     = "json"
	DefaultRelayAddr = ":8080"

	DefaultNegotiationTimeout = 30 * time.Second
)

// Config holds application configuration
type Config struct {
	// Domain is the relay server domain
	Domain string

	// WebSocketURL is constructed from domain unless SIGNAL_URL overrides it
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool

	// Codec is the relay wire codec name (json or msgpack)
	Codec string

	// NegotiationTimeout closes links that never connect. Zero disables it.
	NegotiationTimeout time.Duration

	// RelayAddr is the listen address of the relay server
	RelayAddr string

	// MetricsAddr exposes client metrics when set
	MetricsAddr string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain             string
	SignalURL          string
	STUNServer         string
	TURNServer         string
	TURNUser           string
	TURNPass           string
	ForceRelay         bool
	Codec              string
	NegotiationTimeout string
	RelayAddr          string
	MetricsAddr        string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := pick(opts.Domain, "DOMAIN", DefaultDomain)

	wsURL := pick(opts.SignalURL, "SIGNAL_URL", "")
	if wsURL == "" {
		wsURL = fmt.Sprintf("wss://%s/ws", domain)
	}
	if !strings.HasPrefix(wsURL, "ws://") && !strings.HasPrefix(wsURL, "wss://") {
		return nil, fmt.Errorf("signal URL must use ws:// or wss://: %s", wsURL)
	}

	forceRelay := opts.ForceRelay
	if !forceRelay {
		if v, ok := os.LookupEnv("FORCE_RELAY"); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid FORCE_RELAY %q: %w", v, err)
			}
			forceRelay = b
		}
	}

	codec := strings.ToLower(pick(opts.Codec, "SIGNAL_CODEC", DefaultCodec))

	timeout := DefaultNegotiationTimeout
	if v := pick(opts.NegotiationTimeout, "NEGOTIATION_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid negotiation timeout %q: %w", v, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("negotiation timeout must not be negative: %s", v)
		}
		timeout = d
	}

	cfg := &Config{
		Domain:             domain,
		WebSocketURL:       wsURL,
		STUNServer:         pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:         strings.TrimPrefix(pick(opts.TURNServer, "TURN_SERVER", DefaultTURN), "turn:"),
		TURNUser:           pick(opts.TURNUser, "TURN_USERNAME", DefaultTURNUser),
		TURNPass:           pick(opts.TURNPass, "TURN_PASSWORD", DefaultTURNPass),
		ForceRelay:         forceRelay,
		Codec:              codec,
		NegotiationTimeout: timeout,
		RelayAddr:          pick(opts.RelayAddr, "RELAY_ADDR", DefaultRelayAddr),
		MetricsAddr:        pick(opts.MetricsAddr, "METRICS_ADDR", ""),
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("relay-only mode requires a TURN server")
	}

	return cfg, nil
}

// pick returns the flag value, then the environment value, then the default.
func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("turn:%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
