package config

import "github.com/spf13/viper"

// Default configuration values.
const (
	DefaultOutput     = "commits.json.gz"
	DefaultFlushEvery = 10000
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("output", DefaultOutput)

	viperCfg.SetDefault("extract.since", "")
	viperCfg.SetDefault("extract.until", "")
	viperCfg.SetDefault("extract.branch", "")
	viperCfg.SetDefault("extract.first_parent", false)
	viperCfg.SetDefault("extract.workers", 0)
	viperCfg.SetDefault("extract.flush_every", DefaultFlushEvery)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", "")
}
