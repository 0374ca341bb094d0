package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Feature  FeatureConfig  `mapstructure:"feature"`
	Model    ModelConfig    `mapstructure:"model"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
	// Timezone 为价格日志时间的解释时区，决定“前一日”的边界。
	Timezone string `mapstructure:"timezone"`
}

// Location 解析 Timezone，空值视为 UTC。
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// FeatureConfig 控制特征工程窗口。训练集与预测共用同一份配置。
type FeatureConfig struct {
	RSIPeriod       int     `mapstructure:"rsi_period"`
	BollingerPeriod int     `mapstructure:"bollinger_period"`
	BollingerStdDev float64 `mapstructure:"bollinger_stddev"`
	MinRows         int     `mapstructure:"min_rows"`
}

// ModelConfig 描述随机森林回归器参数。
type ModelConfig struct {
	Trees          int     `mapstructure:"trees"`
	MaxDepth       int     `mapstructure:"max_depth"`
	MinSamplesLeaf int     `mapstructure:"min_samples_leaf"`
	Seed           int64   `mapstructure:"seed"`
	TrainRatio     float64 `mapstructure:"train_ratio"`
}

// ForecastConfig 控制自回归预测步数与间隔。
type ForecastConfig struct {
	Steps    int           `mapstructure:"steps"`
	Interval time.Duration `mapstructure:"interval"`
}

// BacktestConfig 描述投资模拟参数。
type BacktestConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	FeeRate        float64 `mapstructure:"fee_rate"`
	MaxInventory   int     `mapstructure:"max_inventory"`
	TargetMargin   float64 `mapstructure:"target_margin"`
}

// TargetConfig 描述一个分析目标（物品名关键字 + 等级）。
type TargetConfig struct {
	Keyword string `mapstructure:"keyword"`
	Grade   string `mapstructure:"grade"`
}

// AnalysisConfig 控制批量分析。
type AnalysisConfig struct {
	Targets     []TargetConfig `mapstructure:"targets"`
	Concurrency int            `mapstructure:"concurrency"`
}

// MonitorConfig 控制监控接口。仅在 -serve 运行且 Port 大于 0 时启动 HTTP 服务。
type MonitorConfig struct {
	Port int `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if _, locErr := c.App.Location(); locErr != nil {
		err = multierr.Append(err, fmt.Errorf("app.timezone 非法: %w", locErr))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Feature.RSIPeriod < 2 {
		err = multierr.Append(err, errors.New("feature.rsi_period 必须不小于2"))
	}
	if c.Feature.BollingerPeriod < 2 {
		err = multierr.Append(err, errors.New("feature.bollinger_period 必须不小于2"))
	}
	if !(c.Feature.BollingerStdDev > 0) || math.IsInf(c.Feature.BollingerStdDev, 1) {
		err = multierr.Append(err, errors.New("feature.bollinger_stddev 必须为有限正数"))
	}
	if c.Feature.MinRows <= 0 {
		err = multierr.Append(err, errors.New("feature.min_rows 必须大于0"))
	}
	if c.Model.Trees <= 0 {
		err = multierr.Append(err, errors.New("model.trees 必须大于0"))
	}
	if c.Model.MaxDepth <= 0 {
		err = multierr.Append(err, errors.New("model.max_depth 必须大于0"))
	}
	if c.Model.MinSamplesLeaf <= 0 {
		err = multierr.Append(err, errors.New("model.min_samples_leaf 必须大于0"))
	}
	if !(c.Model.TrainRatio > 0 && c.Model.TrainRatio < 1) {
		err = multierr.Append(err, errors.New("model.train_ratio 必须位于(0,1)"))
	}
	if c.Forecast.Steps < 0 {
		err = multierr.Append(err, errors.New("forecast.steps 不能为负"))
	}
	if c.Forecast.Interval <= 0 {
		err = multierr.Append(err, errors.New("forecast.interval 必须大于0"))
	}
	if !(c.Backtest.InitialBalance > 0) || math.IsInf(c.Backtest.InitialBalance, 1) {
		err = multierr.Append(err, errors.New("backtest.initial_balance 必须为有限正数"))
	}
	if !(c.Backtest.FeeRate >= 0 && c.Backtest.FeeRate < 1) {
		err = multierr.Append(err, errors.New("backtest.fee_rate 必须位于[0,1)"))
	}
	if c.Backtest.MaxInventory < 1 {
		err = multierr.Append(err, errors.New("backtest.max_inventory 必须不小于1"))
	}
	if !(c.Backtest.TargetMargin > 0) || math.IsInf(c.Backtest.TargetMargin, 1) {
		err = multierr.Append(err, errors.New("backtest.target_margin 必须为有限正数"))
	}
	if c.Analysis.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("analysis.concurrency 必须大于0"))
	}
	for i, target := range c.Analysis.Targets {
		if target.Keyword == "" {
			err = multierr.Append(err, fmt.Errorf("analysis.targets[%d].keyword 不能为空", i))
		}
	}
	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		err = multierr.Append(err, errors.New("monitor.port 必须位于[0,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
