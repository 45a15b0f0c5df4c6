package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/prometheus"
	"github.com/stretchr/testify/assert"
)

type recordingClient struct {
	incrs   []string
	gauges  []string
	timings []string
	labels  [][]metricsTypes.MetricsLabel
	flushed int
	err     error
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.incrs = append(r.incrs, name)
	r.labels = append(r.labels, labels)
	return r.err
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	r.gauges = append(r.gauges, name)
	return r.err
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	r.timings = append(r.timings, name)
	return r.err
}

func (r *recordingClient) Flush() {
	r.flushed++
}

func Test_MetricsSink(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Should fan out to every client", func(t *testing.T) {
		a := &recordingClient{}
		b := &recordingClient{err: errors.New("broken")}
		sink := NewMetricsSink(&MetricsSinkConfig{
			DefaultLabels: []metricsTypes.MetricsLabel{{Name: "chain_id", Value: "100"}},
		}, []metricsTypes.IMetricsClient{a, b}, l)

		sink.Incr(metricsTypes.Metric_Incr_Aggregation, []metricsTypes.MetricsLabel{{Name: "result", Value: "ok"}}, 1)
		sink.Gauge(metricsTypes.Metric_Gauge_PollerServices, 1, nil)
		sink.Timing(metricsTypes.Metric_Timing_PollerCycleDuration, time.Second, nil)
		sink.Flush()

		for _, c := range []*recordingClient{a, b} {
			assert.Equal(t, []string{metricsTypes.Metric_Incr_Aggregation}, c.incrs)
			assert.Equal(t, []string{metricsTypes.Metric_Gauge_PollerServices}, c.gauges)
			assert.Equal(t, []string{metricsTypes.Metric_Timing_PollerCycleDuration}, c.timings)
			assert.Equal(t, 1, c.flushed)
		}
		assert.Equal(t, []metricsTypes.MetricsLabel{
			{Name: "chain_id", Value: "100"},
			{Name: "result", Value: "ok"},
		}, a.labels[0])
	})
	t.Run("Should treat a nil sink as a no-op", func(t *testing.T) {
		var sink *MetricsSink
		sink.Incr("x", nil, 1)
		sink.Gauge("x", 1, nil)
		sink.Timing("x", time.Second, nil)
		sink.Flush()
		assert.Nil(t, sink.Clients())
	})
	t.Run("Should init clients from config", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.PrometheusConfig.Enabled = true

		clients, err := InitMetricsSinksFromConfig(cfg, l)
		assert.Nil(t, err)
		assert.Len(t, clients, 1)
		_, ok := clients[0].(*prometheus.PrometheusMetricsClient)
		assert.True(t, ok)

		cfg.PrometheusConfig.Enabled = false
		clients, err = InitMetricsSinksFromConfig(cfg, l)
		assert.Nil(t, err)
		assert.Len(t, clients, 0)
	})
}
