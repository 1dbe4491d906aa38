package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ryandielhenn/broadcaster/pkg/broadcast"
	"github.com/ryandielhenn/broadcaster/pkg/gossip"
	"github.com/ryandielhenn/broadcaster/pkg/node"
	"github.com/ryandielhenn/broadcaster/pkg/workload"
)

// Strategy selects which handler a node runs.
type Strategy string

const (
	StrategyFlood    Strategy = "flood"
	StrategyGossip   Strategy = "gossip"
	StrategyEcho     Strategy = "echo"
	StrategyGenerate Strategy = "generate"
)

// Config holds the node configuration.
type Config struct {
	Strategy      Strategy
	Gossip        gossip.Config
	QueueCapacity int
	MaxLineBytes  int
	LogLevel      zapcore.Level
	MetricsAddr   string
	EtcdEndpoints []string
	RegistryTTL   int64
}

func Default() Config {
	return Config{
		Strategy:      StrategyGossip,
		Gossip:        gossip.DefaultConfig(),
		QueueCapacity: node.DefaultQueueCapacity,
		MaxLineBytes:  node.DefaultMaxLineBytes,
		LogLevel:      zapcore.InfoLevel,
		RegistryTTL:   10,
	}
}

// Load reads the configuration from the environment through getenv
// (normally os.Getenv). Unset variables keep their defaults.
func Load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("NODE_STRATEGY"); v != "" {
		switch s := Strategy(strings.ToLower(strings.TrimSpace(v))); s {
		case StrategyFlood, StrategyGossip, StrategyEcho, StrategyGenerate:
			cfg.Strategy = s
		default:
			return Config{}, fmt.Errorf("NODE_STRATEGY: unknown strategy %q", v)
		}
	}
	if v := getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("TICK_INTERVAL: %w", err)
		}
		cfg.Gossip.TickInterval = d
	}
	if err := intVar(getenv, "GOSSIP_FANOUT", &cfg.Gossip.Fanout); err != nil {
		return Config{}, err
	}
	if err := intVar(getenv, "GOSSIP_REPAIR_SAMPLE", &cfg.Gossip.RepairSample); err != nil {
		return Config{}, err
	}
	if v := getenv("GOSSIP_KNOWLEDGE"); v != "" {
		p, err := gossip.ParsePolicy(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return Config{}, fmt.Errorf("GOSSIP_KNOWLEDGE: %w", err)
		}
		cfg.Gossip.Policy = p
	}
	if err := cfg.Gossip.Validate(); err != nil {
		return Config{}, fmt.Errorf("gossip: %w", err)
	}

	if err := intVar(getenv, "QUEUE_CAPACITY", &cfg.QueueCapacity); err != nil {
		return Config{}, err
	}
	if cfg.QueueCapacity < 1 {
		return Config{}, fmt.Errorf("QUEUE_CAPACITY: must be at least 1, got %d", cfg.QueueCapacity)
	}
	if err := intVar(getenv, "MAX_LINE_BYTES", &cfg.MaxLineBytes); err != nil {
		return Config{}, err
	}
	if cfg.MaxLineBytes < 1024 {
		return Config{}, fmt.Errorf("MAX_LINE_BYTES: must be at least 1024, got %d", cfg.MaxLineBytes)
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		lvl, err := zapcore.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}

	cfg.MetricsAddr = strings.TrimSpace(getenv("METRICS_ADDR"))
	cfg.EtcdEndpoints = ParseEndpoints(getenv("ETCD_ENDPOINTS"))
	if v := getenv("REGISTRY_TTL"); v != "" {
		ttl, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ttl < 1 {
			return Config{}, fmt.Errorf("REGISTRY_TTL: want a positive number of seconds, got %q", v)
		}
		cfg.RegistryTTL = ttl
	}

	return cfg, nil
}

// NewHandler builds a fresh handler for the configured strategy.
func (c Config) NewHandler(logger *zap.Logger) (node.Handler, error) {
	switch c.Strategy {
	case StrategyFlood:
		return broadcast.NewFlood(logger), nil
	case StrategyGossip:
		g, err := gossip.New(c.Gossip, gossip.NewRandSampler(nil), logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	case StrategyEcho:
		return workload.Echo{}, nil
	case StrategyGenerate:
		return &workload.Generate{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", c.Strategy)
	}
}

// NodeOptions translates the runtime limits into node options.
func (c Config) NodeOptions() []node.Option {
	return []node.Option{
		node.WithQueueCapacity(c.QueueCapacity),
		node.WithMaxLineBytes(c.MaxLineBytes),
	}
}

// ParseEndpoints splits a comma-separated list, dropping blanks.
func ParseEndpoints(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intVar(getenv func(string) string, name string, dst *int) error {
	v := getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}
