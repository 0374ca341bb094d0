package monitor

import (
	"time"

	"github.com/xx6620/lostark-quant/internal/backtest"
	"github.com/xx6620/lostark-quant/internal/forecast"
	"github.com/xx6620/lostark-quant/internal/market"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventAnalysisRun EventType = "analysis_run"
	EventBacktest    EventType = "backtest"
	EventForecast    EventType = "forecast"
	EventError       EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AnalysisRunPayload 记录一次训练的数据规模与评估结果。
type AnalysisRunPayload struct {
	Item         market.Item `json:"item"`
	Records      int         `json:"records"`
	Rows         int         `json:"rows"`
	TrainRows    int         `json:"train_rows"`
	TestRows     int         `json:"test_rows"`
	RMSE         float64     `json:"rmse"`
	R2           float64     `json:"r2"`
	TrainSeconds float64     `json:"train_seconds"`
}

// BacktestPayload 记录留出集上的投资模拟结果。
type BacktestPayload struct {
	Item   market.Item     `json:"item"`
	Config backtest.Config `json:"config"`
	Result backtest.Result `json:"result"`
}

// ForecastPayload 记录未来价格预测。
type ForecastPayload struct {
	Item   market.Item      `json:"item"`
	Points []forecast.Point `json:"points"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
