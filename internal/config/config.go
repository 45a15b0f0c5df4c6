package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/utils"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "PEARL_STAKING"

// Flag and viper key names.
const (
	Debug = "debug"

	EthereumRpcUrls               = "ethereum.rpc-urls"
	EthereumRpcTimeout            = "ethereum.timeout"
	EthereumRpcRateLimit          = "ethereum.rate-limit"
	EthereumRpcRateLimitBurst     = "ethereum.rate-limit-burst"
	EthereumRpcUseNativeBatchCall = "ethereum.use-native-batch-call"

	RegistryFile = "registry.file"

	PollerInterval       = "poller.interval"
	PollerMaxRetries     = "poller.max-retries"
	PollerRetryBaseDelay = "poller.retry-base-delay"
	PollerConcurrency    = "poller.concurrency"
	PollerServices       = "poller.services"

	MiddlewareUrl     = "middleware.url"
	MiddlewareEnabled = "middleware.enabled"

	RpcHttpPort = "rpc.http-port"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled = "datadog.statsd.enabled"
	DataDogStatsdUrl     = "datadog.statsd.url"
	DataDogTracerEnabled = "datadog.tracer.enabled"
	DataDogTracerEnv     = "datadog.tracer.env"
)

const (
	DefaultEthereumTimeout     = 10 * time.Second
	DefaultPollerInterval      = 30 * time.Second
	DefaultPollerMaxRetries    = 3
	DefaultPollerRetryDelay    = time.Second
	DefaultPollerConcurrency   = 4
	DefaultMiddlewareUrl       = "http://localhost:8765"
	DefaultRpcHttpPort         = 7201
	DefaultPrometheusPort      = 2112
	DefaultEthereumRateLimit   = 20
	DefaultEthereumRateBurst   = 5
	DefaultStatsdUrl           = "localhost:8125"
	DefaultTracerEnvironment   = "pearl"
)

type Config struct {
	Debug             bool
	EthereumRpcConfig EthereumRpcConfig
	RegistryConfig    RegistryConfig
	PollerConfig      PollerConfig
	MiddlewareConfig  MiddlewareConfig
	RpcConfig         RpcConfig
	PrometheusConfig  PrometheusConfig
	DataDogConfig     DataDogConfig
}

type EthereumRpcConfig struct {
	// RpcUrls overrides the registry's RPC url per chain id.
	RpcUrls            map[uint64]string
	Timeout            time.Duration
	RateLimit          float64
	RateLimitBurst     int
	UseNativeBatchCall bool
}

type RegistryConfig struct {
	// File replaces the embedded registry table when set.
	File string
}

// StaticService is a service watched by the poller without asking the middleware.
type StaticService struct {
	ChainId   uint64
	ProgramId string
	ServiceId uint64
	Multisig  common.Address
}

type PollerConfig struct {
	Interval       time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	Concurrency    int
	Services       []StaticService
}

type MiddlewareConfig struct {
	Url     string
	Enabled bool
}

type RpcConfig struct {
	HttpPort int
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type StatsdConfig struct {
	Enabled bool
	Url     string
}

type TracerConfig struct {
	Enabled bool
	Env     string
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
	TracerConfig TracerConfig
}

// KebabToSnakeCase converts a flag name to the viper key it is bound to.
func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

// NewConfig reads the bound flags and environment from viper.
func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		EthereumRpcConfig: EthereumRpcConfig{
			RpcUrls:            mustParseRpcUrls(viper.GetString(normalizeFlagName(EthereumRpcUrls))),
			Timeout:            durationOrDefault(viper.GetDuration(normalizeFlagName(EthereumRpcTimeout)), DefaultEthereumTimeout),
			RateLimit:          viper.GetFloat64(normalizeFlagName(EthereumRpcRateLimit)),
			RateLimitBurst:     viper.GetInt(normalizeFlagName(EthereumRpcRateLimitBurst)),
			UseNativeBatchCall: viper.GetBool(normalizeFlagName(EthereumRpcUseNativeBatchCall)),
		},

		RegistryConfig: RegistryConfig{
			File: viper.GetString(normalizeFlagName(RegistryFile)),
		},

		PollerConfig: PollerConfig{
			Interval:       durationOrDefault(viper.GetDuration(normalizeFlagName(PollerInterval)), DefaultPollerInterval),
			MaxRetries:     viper.GetInt(normalizeFlagName(PollerMaxRetries)),
			RetryBaseDelay: durationOrDefault(viper.GetDuration(normalizeFlagName(PollerRetryBaseDelay)), DefaultPollerRetryDelay),
			Concurrency:    intOrDefault(viper.GetInt(normalizeFlagName(PollerConcurrency)), DefaultPollerConcurrency),
			Services:       mustParseStaticServices(viper.GetString(normalizeFlagName(PollerServices))),
		},

		MiddlewareConfig: MiddlewareConfig{
			Url:     viper.GetString(normalizeFlagName(MiddlewareUrl)),
			Enabled: viper.GetBool(normalizeFlagName(MiddlewareEnabled)),
		},

		RpcConfig: RpcConfig{
			HttpPort: viper.GetInt(normalizeFlagName(RpcHttpPort)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled: viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:     viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
			},
			TracerConfig: TracerConfig{
				Enabled: viper.GetBool(normalizeFlagName(DataDogTracerEnabled)),
				Env:     stringOrDefault(viper.GetString(normalizeFlagName(DataDogTracerEnv)), DefaultTracerEnvironment),
			},
		},
	}
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

func durationOrDefault(d time.Duration, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func stringOrDefault(v string, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOrDefault(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ParseRpcUrls parses "100=https://a,8453=https://b" into a chain id keyed map.
func ParseRpcUrls(value string) (map[uint64]string, error) {
	urls := make(map[uint64]string)
	for _, entry := range utils.ParseStringAsList(value) {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("invalid rpc url entry '%s', expected <chainId>=<url>", entry)
		}
		chainId, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in rpc url entry '%s': %w", entry, err)
		}
		if _, ok := urls[chainId]; ok {
			return nil, fmt.Errorf("duplicate rpc url for chain %d", chainId)
		}
		urls[chainId] = strings.TrimSpace(parts[1])
	}
	return urls, nil
}

func mustParseRpcUrls(value string) map[uint64]string {
	urls, err := ParseRpcUrls(value)
	if err != nil {
		panic(err)
	}
	return urls
}

// ParseStaticServices parses "chainId:programId:serviceId:multisig" entries, comma separated.
func ParseStaticServices(value string) ([]StaticService, error) {
	services := make([]StaticService, 0)
	for _, entry := range utils.ParseStringAsList(value) {
		parts := strings.Split(entry, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid service entry '%s', expected <chainId>:<programId>:<serviceId>:<multisig>", entry)
		}
		chainId, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in service entry '%s': %w", entry, err)
		}
		if parts[1] == "" {
			return nil, fmt.Errorf("empty program id in service entry '%s'", entry)
		}
		serviceId, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid service id in service entry '%s': %w", entry, err)
		}
		if !common.IsHexAddress(parts[3]) {
			return nil, fmt.Errorf("invalid multisig in service entry '%s'", entry)
		}
		services = append(services, StaticService{
			ChainId:   chainId,
			ProgramId: parts[1],
			ServiceId: serviceId,
			Multisig:  common.HexToAddress(parts[3]),
		})
	}
	return services, nil
}

func mustParseStaticServices(value string) []StaticService {
	services, err := ParseStaticServices(value)
	if err != nil {
		panic(err)
	}
	return services
}

// Validate reports configuration errors that NewConfig cannot express by panicking.
func (c *Config) Validate() error {
	if c.PollerConfig.MaxRetries < 0 {
		return fmt.Errorf("%s must not be negative", PollerMaxRetries)
	}
	if c.MiddlewareConfig.Enabled && c.MiddlewareConfig.Url == "" {
		return fmt.Errorf("%s is required when %s is set", MiddlewareUrl, MiddlewareEnabled)
	}
	if c.DataDogConfig.StatsdConfig.Enabled && c.DataDogConfig.StatsdConfig.Url == "" {
		return fmt.Errorf("%s is required when %s is set", DataDogStatsdUrl, DataDogStatsdEnabled)
	}
	return nil
}
