package forecast

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xx6620/lostark-quant/internal/feature"
	"github.com/xx6620/lostark-quant/internal/model"
)

var (
	// ErrInvalidSteps 表示预测步数为负。
	ErrInvalidSteps = errors.New("forecast: 预测步数不能为负")
	// ErrInvalidInterval 表示预测间隔非正。
	ErrInvalidInterval = errors.New("forecast: 预测间隔必须大于0")
	// ErrEmptyHistory 表示没有可用于起步的历史特征行。
	ErrEmptyHistory = errors.New("forecast: 历史数据为空")
	// ErrColumnMismatch 表示特征列与历史行的值数量不一致。
	ErrColumnMismatch = errors.New("forecast: 特征列与历史行不匹配")
)

// Point 为一个自回归生成的未来价格。
type Point struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Forecaster 基于已训练模型逐步向前预测价格。
type Forecaster struct {
	strategy IndicatorStrategy
	logger   *zap.Logger
}

// NewForecaster 创建预测器，strategy 为空时使用 CarryForward。
func NewForecaster(strategy IndicatorStrategy, logger *zap.Logger) *Forecaster {
	if strategy == nil {
		strategy = CarryForward{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forecaster{strategy: strategy, logger: logger}
}

// Forecast 生成恰好 steps 个间隔为 interval 的预测点。
//
// 每一步的滞后特征取自包含已预测行的工作历史，历史不足时退回最早的价格。
// 预测值不做截断，负值或极端值原样返回。调用方传入的 history 不会被修改。
func (f *Forecaster) Forecast(m model.Regressor, history []feature.Row, columns []string, steps int, interval time.Duration) ([]Point, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSteps, steps)
	}
	if steps == 0 {
		return []Point{}, nil
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}
	if len(history[len(history)-1].Values) != len(columns) {
		return nil, fmt.Errorf("%w: %d 列，历史行有 %d 个值", ErrColumnMismatch, len(columns), len(history[len(history)-1].Values))
	}

	work := make([]feature.Row, len(history), len(history)+steps)
	copy(work, history)

	lagOffsets := make(map[string]int, len(feature.Lags))
	for _, lag := range feature.Lags {
		lagOffsets[lag.Column] = lag.Offset
	}

	points := make([]Point, 0, steps)
	for step := 0; step < steps; step++ {
		last := work[len(work)-1]
		next := last.Date.Add(interval)

		values := make([]float64, len(columns))
		for i, column := range columns {
			switch column {
			case feature.ColHour:
				values[i] = float64(next.Hour())
			case feature.ColDayOfWeek:
				values[i] = float64(feature.DayOfWeek(next))
			default:
				if offset, ok := lagOffsets[column]; ok {
					values[i] = lagPrice(work, offset)
				} else {
					values[i] = f.strategy.Value(column, i, work)
				}
			}
		}

		price := m.Predict(values)
		work = append(work, feature.Row{Date: next, Price: price, Values: values})
		points = append(points, Point{Date: next, Price: price})
	}

	f.logger.Debug("自回归预测完成",
		zap.Int("steps", steps),
		zap.Duration("interval", interval),
		zap.Time("from", points[0].Date),
		zap.Time("to", points[len(points)-1].Date),
	)

	return points, nil
}

// lagPrice 返回下一行往前 offset 个采样的价格，历史不足时返回最早价格。
func lagPrice(work []feature.Row, offset int) float64 {
	if len(work) >= offset {
		return work[len(work)-offset].Price
	}
	return work[0].Price
}
