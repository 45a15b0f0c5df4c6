package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_EthereumRequest = "rpc.ethereum.request"
	Metric_Incr_Aggregation     = "rewards.aggregation"
	Metric_Incr_HttpRequest     = "rpc.http.request"

	Metric_Gauge_PollerServices = "poller.services"

	Metric_Timing_EthereumDuration    = "rpc.ethereum.duration"
	Metric_Timing_AggregationDuration = "rewards.aggregation.duration"
	Metric_Timing_PollerCycleDuration = "poller.cycle.duration"
	Metric_Timing_HttpDuration        = "rpc.http.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name: Metric_Incr_EthereumRequest,
			Labels: []string{
				"method",
				"chain_id",
				"status",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_Aggregation,
			Labels: []string{
				"chain_id",
				"program_id",
				"result",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_HttpRequest,
			Labels: []string{
				"method",
				"pattern",
				"status_code",
			},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name: Metric_Gauge_PollerServices,
			Labels: []string{
				"state",
			},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_EthereumDuration,
			Labels: []string{
				"method",
				"chain_id",
				"status",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_AggregationDuration,
			Labels: []string{
				"chain_id",
				"program_id",
				"result",
			},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_PollerCycleDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_HttpDuration,
			Labels: []string{
				"method",
				"pattern",
				"status_code",
			},
		},
	},
}
