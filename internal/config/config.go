package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	_ "time/tzdata"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "lostark"
)

// Load 读取配置文件并结合环境变量返回 Config。
// 默认路径下找不到配置文件时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if explicit || fileExists(path) {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
			}
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "Asia/Seoul")

	v.SetDefault("database.path", "data/lostark_quant.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("feature.rsi_period", 14)
	v.SetDefault("feature.bollinger_period", 20)
	v.SetDefault("feature.bollinger_stddev", 2.0)
	v.SetDefault("feature.min_rows", 300)

	v.SetDefault("model.trees", 200)
	v.SetDefault("model.max_depth", 12)
	v.SetDefault("model.min_samples_leaf", 2)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.train_ratio", 0.8)

	// 10分钟采样，1天 = 144 步
	v.SetDefault("forecast.steps", 144)
	v.SetDefault("forecast.interval", "10m")

	v.SetDefault("backtest.initial_balance", 10_000_000)
	v.SetDefault("backtest.fee_rate", 0.05)
	v.SetDefault("backtest.max_inventory", 5)
	v.SetDefault("backtest.target_margin", 0.10)

	v.SetDefault("analysis.concurrency", 2)

	v.SetDefault("monitor.port", 0)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
