package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyInput 表示没有可模拟的数据，无法进行期末估值。
	ErrEmptyInput = errors.New("backtest: 输入序列为空")
	// ErrLengthMismatch 表示日期、实际价格与预测价格长度不一致。
	ErrLengthMismatch = errors.New("backtest: 输入序列长度不一致")
	// ErrInvalidConfig 表示模拟参数非法。
	ErrInvalidConfig = errors.New("backtest: 参数非法")
	// ErrInvalidPrice 表示实际价格非正或非有限值。
	ErrInvalidPrice = errors.New("backtest: 实际价格必须为正")
)

// TradeType 为交易方向。
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

// TradeEvent 为交易日志条目。买入带 ExpectedMargin，卖出带 Profit，二者互斥。
type TradeEvent struct {
	Type           TradeType `json:"type"`
	Date           time.Time `json:"date"`
	Price          float64   `json:"price"`
	PredPrice      float64   `json:"pred_price"`
	ExpectedMargin *float64  `json:"expected_margin"`
	Profit         *float64  `json:"profit"`
}

// Position 为模拟过程中的账户状态。Count 为0时 AvgBuyPrice 恰为0。
type Position struct {
	Cash        float64 `json:"cash"`
	Count       int     `json:"count"`
	AvgBuyPrice float64 `json:"avg_buy_price"`
}

// Result 汇总一次模拟。
type Result struct {
	FinalAssetValue float64      `json:"final_asset_value"`
	NetProfit       float64      `json:"net_profit"`
	ROIPercent      float64      `json:"roi_percent"`
	Trades          []TradeEvent `json:"trades"`
	Position        Position     `json:"position"`
	EquityCurve     []float64    `json:"equity_curve"`
	Metrics         Metrics      `json:"metrics"`
}

// Simulator 按“严格投资者”规则逐步处理价格与预测。
type Simulator struct {
	cfg      Config
	position Position
	trades   []TradeEvent
	equity   []float64
}

// NewSimulator 以初始资金创建模拟器。cfg 需已通过校验。
func NewSimulator(cfg Config) *Simulator {
	return &Simulator{
		cfg:      cfg,
		position: Position{Cash: cfg.InitialBalance},
	}
}

// Simulate 在留出集上回放策略。三个序列需等长且按时间对齐。
// 参数或输入非法时在任何状态变更前返回错误。
func Simulate(dates []time.Time, actual, predicted []float64, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if len(actual) == 0 {
		return Result{}, ErrEmptyInput
	}
	if len(dates) != len(actual) || len(predicted) != len(actual) {
		return Result{}, fmt.Errorf("%w: dates=%d actual=%d predicted=%d", ErrLengthMismatch, len(dates), len(actual), len(predicted))
	}
	for i, p := range actual {
		if !(p > 0) || math.IsInf(p, 0) {
			return Result{}, fmt.Errorf("%w: 第 %d 个价格为 %v", ErrInvalidPrice, i, p)
		}
	}

	sim := NewSimulator(cfg)
	for i := range actual {
		sim.Step(dates[i], actual[i], predicted[i])
	}
	return sim.Finish(actual[len(actual)-1]), nil
}

// Step 处理单个时间点，最多产生一笔交易。
//
// 满足买入资格（资金足够且未满仓）时只评估买入；即使预期收益不足也不会在同一步尝试卖出。
func (s *Simulator) Step(date time.Time, actual, predicted float64) {
	pos := &s.position

	switch {
	case pos.Cash >= actual && pos.Count < s.cfg.MaxInventory:
		margin := (predicted - actual) / actual
		if margin > s.cfg.TargetMargin {
			pos.Cash -= actual
			pos.Count++
			pos.AvgBuyPrice = (pos.AvgBuyPrice*float64(pos.Count-1) + actual) / float64(pos.Count)
			s.trades = append(s.trades, TradeEvent{
				Type:           TradeBuy,
				Date:           date,
				Price:          actual,
				PredPrice:      predicted,
				ExpectedMargin: &margin,
			})
		}
	case pos.Count > 0:
		profitRate := (actual - pos.AvgBuyPrice) / pos.AvgBuyPrice
		if actual >= predicted || profitRate > TakeProfitRate {
			sellAmount := actual * (1 - s.cfg.FeeRate)
			profit := sellAmount - pos.AvgBuyPrice
			pos.Cash += sellAmount
			pos.Count--
			if pos.Count == 0 {
				pos.AvgBuyPrice = 0
			}
			s.trades = append(s.trades, TradeEvent{
				Type:      TradeSell,
				Date:      date,
				Price:     actual,
				PredPrice: predicted,
				Profit:    &profit,
			})
		}
	}

	s.equity = append(s.equity, s.markToMarket(actual))
}

// Position 返回当前账户状态。
func (s *Simulator) Position() Position {
	return s.position
}

// Finish 以最后一个实际价格（扣除手续费）对剩余库存估值并生成结果。
func (s *Simulator) Finish(lastPrice float64) Result {
	final := s.markToMarket(lastPrice)
	net := final - s.cfg.InitialBalance

	trades := append([]TradeEvent(nil), s.trades...)
	equity := append([]float64(nil), s.equity...)

	return Result{
		FinalAssetValue: final,
		NetProfit:       net,
		ROIPercent:      net / s.cfg.InitialBalance * 100,
		Trades:          trades,
		Position:        s.position,
		EquityCurve:     equity,
		Metrics:         calculateMetrics(s.cfg.InitialBalance, equity, trades),
	}
}

func (s *Simulator) markToMarket(price float64) float64 {
	return s.position.Cash + float64(s.position.Count)*price*(1-s.cfg.FeeRate)
}
