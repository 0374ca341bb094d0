package feature

import (
	"errors"
	"fmt"
	"time"

	"github.com/xx6620/lostark-quant/internal/market"
)

// 特征列名。
const (
	ColHour         = "hour"
	ColDayOfWeek    = "day_of_week"
	ColLag10m       = "lag_10m"
	ColLag1h        = "lag_1h"
	ColLag24h       = "lag_24h"
	ColRSI          = "rsi"
	ColBBPosition   = "bb_position"
	ColIsOverbought = "is_overbought"
	ColIsOversold   = "is_oversold"
)

// Lag 描述一个滞后特征：当前点往前 Offset 个采样的价格。
type Lag struct {
	Column string
	Offset int
}

// Lags 为训练与预测共用的滞后定义，假设采样周期固定为10分钟。
var Lags = []Lag{
	{Column: ColLag10m, Offset: 1},
	{Column: ColLag1h, Offset: 6},
	{Column: ColLag24h, Offset: market.PointsPerDay},
}

// MaxLag 返回最大的滞后步数。
func MaxLag() int {
	maxOffset := 0
	for _, lag := range Lags {
		maxOffset = max(maxOffset, lag.Offset)
	}
	return maxOffset
}

// Columns 返回模型使用的全部特征列，顺序固定。
func Columns() []string {
	return []string{
		ColHour,
		ColDayOfWeek,
		ColLag10m,
		ColLag1h,
		ColLag24h,
		ColRSI,
		ColBBPosition,
		ColIsOverbought,
		ColIsOversold,
	}
}

// ErrInsufficientData 可用于 errors.Is 判断特征行数不足。
var ErrInsufficientData = errors.New("feature: 有效数据不足")

// InsufficientDataError 表示特征生成后的行数低于下限。
type InsufficientDataError struct {
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("feature: 特征生成后仅有 %d 行，至少需要 %d 行", e.Rows, e.Required)
}

// Is 让 errors.Is(err, ErrInsufficientData) 成立。
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// Row 为单个时间点的特征行，Values 与 Dataset.Columns 一一对应。
type Row struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Values []float64 `json:"values"`
}

// Clone 深拷贝一行。
func (r Row) Clone() Row {
	r.Values = append([]float64(nil), r.Values...)
	return r
}

// Dataset 为模型可直接使用的特征表，目标值为 Row.Price。
type Dataset struct {
	Item    market.Item
	Columns []string
	Rows    []Row
}

// Len 返回行数。
func (d Dataset) Len() int {
	return len(d.Rows)
}

// ColumnIndex 返回列下标，不存在时返回 -1。
func (d Dataset) ColumnIndex(name string) int {
	return indexOf(d.Columns, name)
}

// Matrix 返回特征矩阵（共享底层切片，调用方不应修改）。
func (d Dataset) Matrix() [][]float64 {
	out := make([][]float64, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row.Values
	}
	return out
}

// Targets 返回目标价格序列。
func (d Dataset) Targets() []float64 {
	out := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row.Price
	}
	return out
}

// Dates 返回时间序列。
func (d Dataset) Dates() []time.Time {
	out := make([]time.Time, len(d.Rows))
	for i, row := range d.Rows {
		out[i] = row.Date
	}
	return out
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
