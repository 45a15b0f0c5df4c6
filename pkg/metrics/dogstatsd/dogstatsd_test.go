package dogstatsd

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/pearl-agents/staking-sidecar/pkg/logger"
	"github.com/pearl-agents/staking-sidecar/pkg/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

func Test_DogStatsdClient(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Should format labels as statsd tags", func(t *testing.T) {
		tags := formatTags([]metricsTypes.MetricsLabel{
			{Name: "chain_id", Value: "100"},
			{Name: "program_id", Value: "pearl_beta"},
		})
		assert.Equal(t, []string{"chain_id:100", "program_id:pearl_beta"}, tags)
	})
	t.Run("Should send metrics through the statsd client", func(t *testing.T) {
		d := NewDogStatsdMetricsClientWithStatsd(&statsd.NoOpClient{}, l)

		assert.Nil(t, d.Incr(metricsTypes.Metric_Incr_Aggregation, nil, 1))
		assert.Nil(t, d.Gauge(metricsTypes.Metric_Gauge_PollerServices, 2, nil))
		assert.Nil(t, d.Timing(metricsTypes.Metric_Timing_PollerCycleDuration, time.Millisecond, nil))
		d.Flush()
	})
}
