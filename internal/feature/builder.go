package feature

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xx6620/lostark-quant/internal/indicator"
	"github.com/xx6620/lostark-quant/internal/market"
)

// DefaultMinRows 为训练所需的最少特征行数。
const DefaultMinRows = 300

// Config 控制特征工程。训练集构建与预测必须使用同一份配置。
type Config struct {
	Indicator indicator.Config
	MinRows   int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		Indicator: indicator.DefaultConfig(),
		MinRows:   DefaultMinRows,
	}
}

// Builder 根据价格日志生成特征表。
type Builder struct {
	cfg        Config
	indicators *indicator.Calculator
	logger     *zap.Logger
}

// NewBuilder 创建特征构建器。
func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	if cfg.MinRows <= 0 {
		cfg.MinRows = DefaultMinRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	calc := indicator.NewCalculator(cfg.Indicator)
	cfg.Indicator = calc.Config()
	return &Builder{
		cfg:        cfg,
		indicators: calc,
		logger:     logger,
	}
}

// Config 返回实际生效的配置。
func (b *Builder) Config() Config {
	return b.cfg
}

// Warmup 返回首个可输出行的下标：滞后与指标窗口都已满足。
func (b *Builder) Warmup() int {
	return max(MaxLag(), b.indicators.Warmup())
}

// Build 计算特征。输入需按时间升序；预热期内的记录被丢弃，不做填充。
func (b *Builder) Build(records []market.PriceRecord) (Dataset, error) {
	for i := 1; i < len(records); i++ {
		if records[i].Date.Before(records[i-1].Date) {
			return Dataset{}, fmt.Errorf("feature: 第 %d 条记录时间早于前一条，输入必须按时间升序", i)
		}
	}

	ds := Dataset{Columns: Columns()}
	if len(records) > 0 {
		ds.Item = records[0].Item()
	}

	start := b.Warmup()
	if len(records) <= start {
		return Dataset{}, &InsufficientDataError{Rows: 0, Required: b.cfg.MinRows}
	}

	series := indicator.NewSeries(records)
	bands, err := b.indicators.Compute(series.Price)
	if err != nil {
		return Dataset{}, fmt.Errorf("feature: %w", err)
	}

	ds.Rows = make([]Row, 0, series.Len()-start)
	for i := start; i < series.Len(); i++ {
		ds.Rows = append(ds.Rows, b.buildRow(series, bands, i))
	}

	if len(ds.Rows) < b.cfg.MinRows {
		return Dataset{}, &InsufficientDataError{Rows: len(ds.Rows), Required: b.cfg.MinRows}
	}

	b.logger.Debug("特征构建完成",
		zap.String("item", ds.Item.Label()),
		zap.Int("records", len(records)),
		zap.Int("rows", len(ds.Rows)),
		zap.Int("warmup", start),
	)

	return ds, nil
}

func (b *Builder) buildRow(series indicator.Series, bands indicator.Bands, i int) Row {
	ts := series.Timestamps[i]
	price := series.Price[i]

	values := make([]float64, 0, len(Columns()))
	values = append(values, TimeValues(ts)...)
	for _, lag := range Lags {
		v, _ := series.Lag(i, lag.Offset)
		values = append(values, v)
	}
	values = append(values,
		bands.RSI[i],
		bands.Position(i, price),
		boolToFloat(bands.Overbought(i, price)),
		boolToFloat(bands.Oversold(i, price)),
	)

	return Row{Date: ts, Price: price, Values: values}
}
