package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/ryandielhenn/broadcaster/discovery"
	"github.com/ryandielhenn/broadcaster/internal/config"
	"github.com/ryandielhenn/broadcaster/internal/telemetry"
	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

// Set with -ldflags "-X main.version=... -X main.gitSHA=...".
var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("invalid configuration", zap.Error(err))
	}

	// stdout carries the protocol; all diagnostics go to stderr.
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	telemetry.SetBuildInfo(version, gitSHA)
	logger.Info("starting node",
		zap.String("strategy", string(cfg.Strategy)),
		zap.Duration("tick", cfg.Gossip.TickInterval),
		zap.String("knowledge", cfg.Gossip.Policy.String()),
		zap.String("version", version),
	)

	h, err := cfg.NewHandler(logger)
	if err != nil {
		logger.Fatal("build handler", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, logger)
	}

	opts := cfg.NodeOptions()
	var reg *registration
	if len(cfg.EtcdEndpoints) > 0 {
		reg = &registration{endpoints: cfg.EtcdEndpoints, ttl: cfg.RegistryTTL, logger: logger}
		opts = append(opts, node.WithOnInit(reg.register))
		defer reg.close()
	}

	if err := node.New(h, logger, opts...).Run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("node stopped", zap.Error(err))
	}
	logger.Info("node exited")
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
}

// registration publishes the node in etcd once its identity is known.
// Failures are logged and never stop the node.
type registration struct {
	endpoints []string
	ttl       int64
	logger    *zap.Logger

	cli    *clientv3.Client
	lease  clientv3.LeaseID
	cancel context.CancelFunc
}

func (r *registration) register(id message.Identity) {
	cli, err := discovery.NewClient(r.endpoints)
	if err != nil {
		r.logger.Warn("etcd unavailable, not registering", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lease, stop, err := discovery.RegisterNode(ctx, cli, id, r.ttl)
	if err != nil {
		r.logger.Warn("register node", zap.Error(err))
		_ = cli.Close()
		return
	}
	r.cli, r.lease, r.cancel = cli, lease, stop

	live, err := discovery.ListNodes(ctx, cli)
	if err != nil {
		r.logger.Warn("list registered nodes", zap.Error(err))
	}
	r.logger.Info("registered in etcd",
		zap.String("node_id", id.NodeID),
		zap.Int64("lease", int64(lease)),
		zap.Int("registered", len(live)),
	)
}

func (r *registration) close() {
	if r.cli == nil {
		return
	}
	r.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := discovery.Deregister(ctx, r.cli, r.lease); err != nil {
		r.logger.Warn("deregister node", zap.Error(err))
	}
	_ = r.cli.Close()
}
