package forecast

import "github.com/xx6620/lostark-quant/internal/feature"

// IndicatorStrategy 决定预测步中非时间、非滞后列（RSI、布林带等）的取值。
// 替换实现即可改为在增长的历史上重算指标，不影响时间与滞后特征逻辑。
type IndicatorStrategy interface {
	Value(column string, index int, history []feature.Row) float64
}

// CarryForward 直接沿用上一行的值。
//
// 这是近似做法：指标在整个预测区间保持不变，预测越远偏差越大。
type CarryForward struct{}

// Value 实现 IndicatorStrategy。
func (CarryForward) Value(_ string, index int, history []feature.Row) float64 {
	return history[len(history)-1].Values[index]
}
