package cmd

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pearl-agents/staking-sidecar/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "staking-sidecar",
	Short: "Reads Pearl agent staking programs and reports rewards and eligibility for each service",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.EthereumRpcUrls, "", `Per-chain RPC overrides, e.g. "100=https://rpc.gnosischain.com,8453=https://mainnet.base.org"`)
	rootCmd.PersistentFlags().Duration(config.EthereumRpcTimeout, config.DefaultEthereumTimeout, `Timeout of a single JSON-RPC request`)
	rootCmd.PersistentFlags().Float64(config.EthereumRpcRateLimit, config.DefaultEthereumRateLimit, `Requests per second allowed per chain`)
	rootCmd.PersistentFlags().Int(config.EthereumRpcRateLimitBurst, config.DefaultEthereumRateBurst, `Burst size of the per-chain rate limiter`)
	rootCmd.PersistentFlags().Bool(config.EthereumRpcUseNativeBatchCall, false, `Use a JSON-RPC batch of eth_calls instead of Multicall3`)

	rootCmd.PersistentFlags().String(config.RegistryFile, "", `Path to a registry YAML file replacing the built-in chain and program table`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, config.DefaultRpcHttpPort, `http rpc port`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, config.DefaultStatsdUrl, `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Bool(config.DataDogTracerEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogTracerEnv, config.DefaultTracerEnvironment, `DataDog environment tag`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, config.DefaultPrometheusPort, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().String(config.MiddlewareUrl, config.DefaultMiddlewareUrl, `Base url of the service backend`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rewardsCmd)
	rootCmd.AddCommand(programsCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(runVersionCmd)

	// bind any subcommand flags
	runCmd.PersistentFlags().Duration(config.PollerInterval, config.DefaultPollerInterval, `Time between poll cycles`)
	runCmd.PersistentFlags().Int(config.PollerMaxRetries, config.DefaultPollerMaxRetries, `Retries of an unavailable RPC per service and cycle`)
	runCmd.PersistentFlags().Duration(config.PollerRetryBaseDelay, config.DefaultPollerRetryDelay, `Delay before the first retry, doubled on each attempt`)
	runCmd.PersistentFlags().Int(config.PollerConcurrency, config.DefaultPollerConcurrency, `Services refreshed in parallel`)
	runCmd.PersistentFlags().String(config.PollerServices, "", `Watched services, e.g. "100:pearl_beta:42:0xabc...,8453:meme_base_beta:7:0xdef..."`)
	runCmd.PersistentFlags().Bool(config.MiddlewareEnabled, false, `Ask the service backend which services to watch`)

	bindCommandFlags(runCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	// a missing .env is not an error
	_ = godotenv.Load()

	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// bindCommandFlags binds a subcommand's own flags the same way the root flags are bound.
func bindCommandFlags(cmd *cobra.Command) {
	bind := func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	}
	cmd.PersistentFlags().VisitAll(bind)
	cmd.Flags().VisitAll(bind)
}
