package dogstatsd

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

type DogStatsdClient struct {
	client statsd.ClientInterface
	logger *zap.Logger
}

const namespace = "pearl_staking."

func NewDogStatsdMetricsClient(addr string, l *zap.Logger) (*DogStatsdClient, error) {
	c, err := statsd.New(addr, statsd.WithNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}
	return NewDogStatsdMetricsClientWithStatsd(c, l), nil
}

func NewDogStatsdMetricsClientWithStatsd(c statsd.ClientInterface, l *zap.Logger) *DogStatsdClient {
	return &DogStatsdClient{
		client: c,
		logger: l,
	}
}

func formatTags(labels []metricsTypes.MetricsLabel) []string {
	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		tags = append(tags, fmt.Sprintf("%s:%s", label.Name, label.Value))
	}
	return tags
}

func (d *DogStatsdClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return d.client.Count(name, int64(value), formatTags(labels), 1)
}

func (d *DogStatsdClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return d.client.Gauge(name, value, formatTags(labels), 1)
}

func (d *DogStatsdClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return d.client.Timing(name, value, formatTags(labels), 1)
}

func (d *DogStatsdClient) Flush() {
	if err := d.client.Flush(); err != nil {
		d.logger.Sugar().Warnw("Failed to flush statsd client", zap.Error(err))
	}
}
