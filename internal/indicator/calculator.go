package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// Config 控制技术指标窗口。
type Config struct {
	RSIPeriod       int
	BollingerPeriod int
	BollingerStdDev float64
}

// DefaultConfig 返回默认窗口：RSI 14，布林带 20 / 2σ。
func DefaultConfig() Config {
	return Config{
		RSIPeriod:       14,
		BollingerPeriod: 20,
		BollingerStdDev: 2,
	}
}

// Bands 保存逐点计算的指标序列，长度与输入价格一致。
// 下标小于 Warmup 的值尚未稳定，不应使用。
type Bands struct {
	RSI    []float64
	Upper  []float64
	Middle []float64
	Lower  []float64
	Warmup int
}

// Len 返回序列长度。
func (b Bands) Len() int {
	return len(b.RSI)
}

// Position 返回第 i 个点在布林带中的位置（%B），限制在[0,1]。
func (b Bands) Position(i int, price float64) float64 {
	width := b.Upper[i] - b.Lower[i]
	if width <= 0 {
		return 0
	}
	position := SafeDivide(price-b.Lower[i], width)
	return math.Max(0, math.Min(1, position))
}

// Overbought 判断价格是否触及上轨。
func (b Bands) Overbought(i int, price float64) bool {
	return b.Upper[i] > b.Lower[i] && price >= b.Upper[i]
}

// Oversold 判断价格是否触及下轨。
func (b Bands) Oversold(i int, price float64) bool {
	return b.Upper[i] > b.Lower[i] && price <= b.Lower[i]
}

// Calculator 提供滚动窗口技术指标计算。只依赖输入序列，无内部状态。
type Calculator struct {
	cfg Config
}

// NewCalculator 创建 Calculator，非法窗口回退为默认值。
func NewCalculator(cfg Config) *Calculator {
	def := DefaultConfig()
	if cfg.RSIPeriod < 2 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.BollingerPeriod < 2 {
		cfg.BollingerPeriod = def.BollingerPeriod
	}
	if cfg.BollingerStdDev <= 0 {
		cfg.BollingerStdDev = def.BollingerStdDev
	}
	return &Calculator{cfg: cfg}
}

// Config 返回实际生效的窗口配置。
func (c *Calculator) Config() Config {
	return c.cfg
}

// Warmup 返回第一个所有指标均有效的下标。
func (c *Calculator) Warmup() int {
	return max(c.cfg.RSIPeriod, c.cfg.BollingerPeriod-1)
}

// Compute 对价格序列逐点计算 RSI 与布林带。第 i 个值只依赖 prices[:i+1]。
func (c *Calculator) Compute(prices []float64) (Bands, error) {
	warmup := c.Warmup()
	if len(prices) <= warmup {
		return Bands{}, fmt.Errorf("计算指标失败: 至少需要 %d 个价格，当前 %d", warmup+1, len(prices))
	}

	rsi := talib.Rsi(prices, c.cfg.RSIPeriod)
	upper, middle, lower := talib.BBands(prices, c.cfg.BollingerPeriod, c.cfg.BollingerStdDev, c.cfg.BollingerStdDev, talib.SMA)

	for i := range rsi {
		rsi[i] = Clean(rsi[i])
		upper[i] = Clean(upper[i])
		middle[i] = Clean(middle[i])
		lower[i] = Clean(lower[i])
	}

	return Bands{
		RSI:    rsi,
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
		Warmup: warmup,
	}, nil
}
