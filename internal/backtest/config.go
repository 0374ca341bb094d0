package backtest

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// TakeProfitRate 为固定止盈阈值，与 TargetMargin 无关。
const TakeProfitRate = 0.05

// Config 定义投资模拟参数。
type Config struct {
	InitialBalance float64 `json:"initial_balance"` // 初始资金
	FeeRate        float64 `json:"fee_rate"`        // 卖出手续费率，位于[0,1)
	MaxInventory   int     `json:"max_inventory"`   // 最大持有数量
	TargetMargin   float64 `json:"target_margin"`   // 买入所需的最低预期收益率
}

// DefaultConfig 返回默认参数。
func DefaultConfig() Config {
	return Config{
		InitialBalance: 10_000_000,
		FeeRate:        0.05,
		MaxInventory:   5,
		TargetMargin:   0.10,
	}
}

// Validate 校验参数，所有问题合并后以 ErrInvalidConfig 返回。
func (c Config) Validate() error {
	var err error

	if !(c.InitialBalance > 0) || math.IsInf(c.InitialBalance, 1) {
		err = multierr.Append(err, fmt.Errorf("initial_balance 必须为有限正数，当前 %v", c.InitialBalance))
	}
	// NaN 与任何值比较均为假，条件须正向书写。
	if !(c.FeeRate >= 0 && c.FeeRate < 1) {
		err = multierr.Append(err, fmt.Errorf("fee_rate 必须位于[0,1)，当前 %v", c.FeeRate))
	}
	if c.MaxInventory < 1 {
		err = multierr.Append(err, fmt.Errorf("max_inventory 必须不小于1，当前 %d", c.MaxInventory))
	}
	if !(c.TargetMargin > 0) || math.IsInf(c.TargetMargin, 1) {
		err = multierr.Append(err, fmt.Errorf("target_margin 必须为有限正数，当前 %v", c.TargetMargin))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
