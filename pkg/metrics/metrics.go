package metrics

import (
	"time"

	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/dogstatsd"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSinkConfig struct {
	DefaultLabels []metricsTypes.MetricsLabel
}

// MetricsSink fans every metric out to all configured clients.
// A nil *MetricsSink is valid and drops everything.
type MetricsSink struct {
	config  *MetricsSinkConfig
	clients []metricsTypes.IMetricsClient
	logger  *zap.Logger
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient, l *zap.Logger) *MetricsSink {
	if cfg == nil {
		cfg = &MetricsSinkConfig{}
	}
	return &MetricsSink{
		config:  cfg,
		clients: clients,
		logger:  l,
	}
}

// InitMetricsSinksFromConfig builds the metrics clients enabled in the config.
func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) ([]metricsTypes.IMetricsClient, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)

	if cfg.DataDogConfig.StatsdConfig.Enabled {
		s, err := dogstatsd.NewDogStatsdMetricsClient(cfg.DataDogConfig.StatsdConfig.Url, l)
		if err != nil {
			l.Sugar().Errorw("Failed to create statsd client", zap.Error(err))
			return nil, err
		}
		clients = append(clients, s)
		l.Sugar().Infow("DataDog statsd metrics enabled", zap.String("url", cfg.DataDogConfig.StatsdConfig.Url))
	}

	if cfg.PrometheusConfig.Enabled {
		pc, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			l.Sugar().Errorw("Failed to create prometheus client", zap.Error(err))
			return nil, err
		}
		clients = append(clients, pc)
		l.Sugar().Infow("Prometheus metrics enabled", zap.Int("port", cfg.PrometheusConfig.Port))
	}

	return clients, nil
}

func (ms *MetricsSink) withDefaults(labels []metricsTypes.MetricsLabel) []metricsTypes.MetricsLabel {
	if len(ms.config.DefaultLabels) == 0 {
		return labels
	}
	return append(append([]metricsTypes.MetricsLabel{}, ms.config.DefaultLabels...), labels...)
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) {
	if ms == nil {
		return
	}
	for _, client := range ms.clients {
		if err := client.Incr(name, ms.withDefaults(labels), value); err != nil {
			ms.logger.Sugar().Debugw("Failed to record incr", zap.String("name", name), zap.Error(err))
		}
	}
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) {
	if ms == nil {
		return
	}
	for _, client := range ms.clients {
		if err := client.Gauge(name, value, ms.withDefaults(labels)); err != nil {
			ms.logger.Sugar().Debugw("Failed to record gauge", zap.String("name", name), zap.Error(err))
		}
	}
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) {
	if ms == nil {
		return
	}
	for _, client := range ms.clients {
		if err := client.Timing(name, value, ms.withDefaults(labels)); err != nil {
			ms.logger.Sugar().Debugw("Failed to record timing", zap.String("name", name), zap.Error(err))
		}
	}
}

func (ms *MetricsSink) Flush() {
	if ms == nil {
		return
	}
	for _, client := range ms.clients {
		client.Flush()
	}
}

// Clients returns the underlying clients, e.g. to find the prometheus client and serve it.
func (ms *MetricsSink) Clients() []metricsTypes.IMetricsClient {
	if ms == nil {
		return nil
	}
	return ms.clients
}
