package cmd

import (
	"context"
	"time"

	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/internal/tracer"
	"github.com/pearl-agents/staking-sidecar/internal/version"
	"github.com/pearl-agents/staking-sidecar/pkg/clients/middleware"
	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/prometheus"
	"github.com/pearl-agents/staking-sidecar/pkg/rewardsPoller"
	"github.com/pearl-agents/staking-sidecar/pkg/rpcServer"
	"github.com/pearl-agents/staking-sidecar/pkg/shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll watched services and serve rewards over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		l.Sugar().Infow("staking sidecar",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
		)

		tracer.StartTracer(cfg.DataDogConfig.TracerConfig.Enabled, cfg.DataDogConfig.TracerConfig.Env)
		defer tracer.StopTracer(cfg.DataDogConfig.TracerConfig.Enabled)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}
		sink := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients, l)
		defer sink.Flush()

		deps, err := newStakingDeps(cfg, sink, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup staking dependencies", zap.Error(err))
		}

		var source rewardsPoller.ServiceSource
		if cfg.MiddlewareConfig.Enabled {
			source = rewardsPoller.NewMiddlewareServiceSource(middleware.NewClient(cfg.MiddlewareConfig.Url, l), deps.registry, l)
			l.Sugar().Infow("Watching services from the service backend", zap.String("url", cfg.MiddlewareConfig.Url))
		} else {
			source = rewardsPoller.NewStaticServiceSource(cfg.PollerConfig.Services)
			l.Sugar().Infow("Watching configured services", zap.Int("count", len(cfg.PollerConfig.Services)))
		}

		poller := rewardsPoller.NewRewardsPoller(&rewardsPoller.PollerConfig{
			Interval:       cfg.PollerConfig.Interval,
			MaxRetries:     cfg.PollerConfig.MaxRetries,
			RetryBaseDelay: cfg.PollerConfig.RetryBaseDelay,
			Concurrency:    cfg.PollerConfig.Concurrency,
		}, source, deps.aggregators, sink, l)

		pollerDone := make(chan struct{})
		go func() {
			defer close(pollerDone)
			if err := poller.Run(ctx); err != nil {
				l.Sugar().Errorw("Rewards poller stopped", zap.Error(err))
			}
		}()

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort: cfg.RpcConfig.HttpPort,
		}, deps.registry, deps.aggregators, poller, sink, l)

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool, 1)
		rpcErrors := rpc.Start(ctx, rpcChannel)

		// done triggers the same shutdown path as a signal when the HTTP server fails
		done := make(chan bool)
		go func() {
			if err := <-rpcErrors; err != nil {
				l.Sugar().Errorw("RPC server failed", zap.Error(err))
				close(done)
			}
		}()

		if cfg.PrometheusConfig.Enabled {
			for _, c := range metricsClients {
				pc, ok := c.(*prometheus.PrometheusMetricsClient)
				if !ok {
					continue
				}
				go func() {
					if err := pc.StartPrometheusServer(ctx, cfg.PrometheusConfig.Port); err != nil {
						l.Sugar().Errorw("Prometheus server stopped", zap.Error(err))
					}
				}()
			}
		}

		l.Sugar().Info("Started staking sidecar")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			rpcChannel <- true
			cancel()
			<-pollerDone
		}, time.Second*5, l)
	},
}
