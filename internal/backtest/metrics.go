package backtest

import "math"

// Metrics 记录回测绩效指标，仅由交易日志与权益曲线派生。
type Metrics struct {
	BuyCount       int     `json:"buy_count"`
	SellCount      int     `json:"sell_count"`
	WinRate        float64 `json:"win_rate"`
	RealizedProfit float64 `json:"realized_profit"`
	MaxDrawdown    float64 `json:"max_drawdown"`
}

func calculateMetrics(initial float64, equity []float64, trades []TradeEvent) Metrics {
	var m Metrics
	wins := 0
	for _, t := range trades {
		switch t.Type {
		case TradeBuy:
			m.BuyCount++
		case TradeSell:
			m.SellCount++
			if t.Profit != nil {
				m.RealizedProfit += *t.Profit
				if *t.Profit > 0 {
					wins++
				}
			}
		}
	}
	if m.SellCount > 0 {
		m.WinRate = float64(wins) / float64(m.SellCount)
	}

	curve := make([]float64, 0, len(equity)+1)
	curve = append(curve, initial)
	curve = append(curve, equity...)
	m.MaxDrawdown = computeDrawdown(curve)

	return m
}

func computeDrawdown(equity []float64) float64 {
	var peak float64
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return math.Abs(maxDD)
}
