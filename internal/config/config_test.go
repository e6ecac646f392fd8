package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DOMAIN", "SIGNAL_URL", "STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD",
		"FORCE_RELAY", "SIGNAL_CODEC", "NEGOTIATION_TIMEOUT", "RELAY_ADDR", "METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "wss://"+DefaultDomain+"/ws", cfg.WebSocketURL)
	assert.Equal(t, DefaultCodec, cfg.Codec)
	assert.Equal(t, DefaultNegotiationTimeout, cfg.NegotiationTimeout)
	assert.Equal(t, DefaultRelayAddr, cfg.RelayAddr)
	assert.False(t, cfg.ForceRelay)
	assert.Equal(t, []string{DefaultSTUN}, cfg.GetSTUNServers())
	assert.Equal(t, "https://"+DefaultDomain+"/r/brave-otter", cfg.GetRoomLink("brave-otter"))
}

func TestLoadPriority(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOMAIN", "env.example")
	t.Setenv("SIGNAL_CODEC", "MSGPACK")
	t.Setenv("NEGOTIATION_TIMEOUT", "5s")

	cfg, err := Load(Options{Domain: "flag.example"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example", cfg.Domain)
	assert.Equal(t, "wss://flag.example/ws", cfg.WebSocketURL)
	assert.Equal(t, "msgpack", cfg.Codec)
	assert.Equal(t, 5*time.Second, cfg.NegotiationTimeout)
}

func TestLoadSignalURLOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIGNAL_URL", "ws://127.0.0.1:8080/ws")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8080/ws", cfg.WebSocketURL)

	_, err = Load(Options{SignalURL: "http://127.0.0.1/ws"})
	assert.Error(t, err)
}

func TestLoadNegotiationTimeout(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{NegotiationTimeout: "0"})
	require.NoError(t, err)
	assert.Zero(t, cfg.NegotiationTimeout)

	_, err = Load(Options{NegotiationTimeout: "soon"})
	assert.Error(t, err)

	_, err = Load(Options{NegotiationTimeout: "-1s"})
	assert.Error(t, err)
}

func TestLoadForceRelay(t *testing.T) {
	clearEnv(t)
	t.Setenv("FORCE_RELAY", "true")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.True(t, cfg.ForceRelay)

	t.Setenv("FORCE_RELAY", "maybe")
	_, err = Load(Options{})
	assert.Error(t, err)
}

func TestTURNServers(t *testing.T) {
	clearEnv(t)
	t.Setenv("TURN_SERVER", "turn:relay.example")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"turn:relay.example:3478?transport=udp",
		"turn:relay.example:3478?transport=tcp",
		"turns:relay.example:5349?transport=tcp",
	}, cfg.GetTURNServers())
}
