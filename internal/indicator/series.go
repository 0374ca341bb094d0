package indicator

import (
	"math"
	"time"

	"github.com/xx6620/lostark-quant/internal/market"
)

// Series 将价格日志拆分为便于指标计算的序列。
type Series struct {
	Timestamps []time.Time
	Price      []float64
}

// NewSeries 从价格记录创建 Series，保持输入顺序。
func NewSeries(records []market.PriceRecord) Series {
	length := len(records)
	series := Series{
		Timestamps: make([]time.Time, length),
		Price:      make([]float64, length),
	}

	for i, record := range records {
		series.Timestamps[i] = record.Date
		series.Price[i] = record.Price
	}

	return series
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Price)
}

// Lag 返回第 i 个点往前 n 个采样的价格，不足时返回 false。
func (s Series) Lag(i, n int) (float64, bool) {
	if i-n < 0 || i >= s.Len() {
		return 0, false
	}
	return s.Price[i-n], true
}

// SafeDivide 除法保护，除数为0时返回0。
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Clean 将 NaN/Inf 归零。
func Clean(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
