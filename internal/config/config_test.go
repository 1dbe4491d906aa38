package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ryandielhenn/broadcaster/pkg/gossip"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(env(nil))
	require.NoError(t, err)

	assert.Equal(t, StrategyGossip, cfg.Strategy)
	assert.Equal(t, 200*time.Millisecond, cfg.Gossip.TickInterval)
	assert.Equal(t, 5, cfg.Gossip.Fanout)
	assert.Equal(t, 5, cfg.Gossip.RepairSample)
	assert.Equal(t, gossip.Confirmed, cfg.Gossip.Policy)
	assert.Equal(t, 4096, cfg.QueueCapacity)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.EtcdEndpoints)
	assert.Equal(t, int64(10), cfg.RegistryTTL)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(env(map[string]string{
		"NODE_STRATEGY":        "Flood",
		"TICK_INTERVAL":        "50ms",
		"GOSSIP_FANOUT":        "3",
		"GOSSIP_REPAIR_SAMPLE": "0",
		"GOSSIP_KNOWLEDGE":     "optimistic",
		"QUEUE_CAPACITY":       "64",
		"MAX_LINE_BYTES":       "65536",
		"LOG_LEVEL":            "debug",
		"METRICS_ADDR":         " :9100 ",
		"ETCD_ENDPOINTS":       "http://etcd:2379, http://etcd2:2379",
		"REGISTRY_TTL":         "30",
	}))
	require.NoError(t, err)

	assert.Equal(t, StrategyFlood, cfg.Strategy)
	assert.Equal(t, 50*time.Millisecond, cfg.Gossip.TickInterval)
	assert.Equal(t, 3, cfg.Gossip.Fanout)
	assert.Equal(t, 0, cfg.Gossip.RepairSample)
	assert.Equal(t, gossip.Optimistic, cfg.Gossip.Policy)
	assert.Equal(t, 64, cfg.QueueCapacity)
	assert.Equal(t, 65536, cfg.MaxLineBytes)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, []string{"http://etcd:2379", "http://etcd2:2379"}, cfg.EtcdEndpoints)
	assert.Equal(t, int64(30), cfg.RegistryTTL)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown strategy", env: map[string]string{"NODE_STRATEGY": "paxos"}},
		{name: "bad duration", env: map[string]string{"TICK_INTERVAL": "soon"}},
		{name: "zero tick", env: map[string]string{"TICK_INTERVAL": "0s"}},
		{name: "runaway tick", env: map[string]string{"TICK_INTERVAL": "1us"}},
		{name: "fanout not a number", env: map[string]string{"GOSSIP_FANOUT": "many"}},
		{name: "zero fanout", env: map[string]string{"GOSSIP_FANOUT": "0"}},
		{name: "unknown policy", env: map[string]string{"GOSSIP_KNOWLEDGE": "eager"}},
		{name: "zero queue", env: map[string]string{"QUEUE_CAPACITY": "0"}},
		{name: "tiny lines", env: map[string]string{"MAX_LINE_BYTES": "10"}},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "bad ttl", env: map[string]string{"REGISTRY_TTL": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestParseEndpoints(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty string", input: "", want: nil},
		{name: "single", input: "http://etcd:2379", want: []string{"http://etcd:2379"}},
		{name: "with spaces and blanks", input: " a:1 , ,b:2,", want: []string{"a:1", "b:2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEndpoints(tt.input))
		})
	}
}

func TestNewHandler(t *testing.T) {
	for _, s := range []Strategy{StrategyFlood, StrategyGossip, StrategyEcho, StrategyGenerate} {
		t.Run(string(s), func(t *testing.T) {
			cfg := Default()
			cfg.Strategy = s
			h, err := cfg.NewHandler(nil)
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}

	cfg := Default()
	cfg.Strategy = "paxos"
	_, err := cfg.NewHandler(nil)
	require.Error(t, err)

	cfg = Default()
	cfg.Gossip.TickInterval = time.Nanosecond
	_, err = cfg.NewHandler(nil)
	require.Error(t, err)
}
