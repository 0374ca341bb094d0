package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/xx6620/lostark-quant/internal/forecast"
	"github.com/xx6620/lostark-quant/internal/market"
	"github.com/xx6620/lostark-quant/internal/pipeline"
)

// DefaultForecastRows 为预测表最多展示的行数。
const DefaultForecastRows = 12

const timeFormat = "2006-01-02 15:04"

// Renderer 以对齐文本表格输出分析结果。
type Renderer struct {
	forecastRows int
}

// NewRenderer 创建渲染器，forecastRows 非正时使用默认值。
func NewRenderer(forecastRows int) *Renderer {
	if forecastRows <= 0 {
		forecastRows = DefaultForecastRows
	}
	return &Renderer{forecastRows: forecastRows}
}

// RenderAll 依次输出批量分析结果，失败的目标输出一行错误。
func (r *Renderer) RenderAll(w io.Writer, outcomes []pipeline.Outcome) error {
	for i, o := range outcomes {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if o.Err != nil {
			if _, err := fmt.Fprintf(w, "== %s ==\n分析失败: %v\n", o.Target, o.Err); err != nil {
				return err
			}
			continue
		}
		if err := r.Render(w, o.Report); err != nil {
			return err
		}
	}
	return nil
}

// Render 输出单个报告。
func (r *Renderer) Render(w io.Writer, rep *pipeline.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	snap := rep.Snapshot
	fmt.Fprintf(tw, "== %s ==\n", snap.Item.Label())
	fmt.Fprintf(tw, "最新时间\t%s\n", snap.LatestAt.Format(timeFormat))
	fmt.Fprintf(tw, "当前价格\t%s\n", Amount(snap.CurrentPrice, 0))
	if snap.HasPrevDay {
		fmt.Fprintf(tw, "前日均价\t%s\t(%s%%)\n", Amount(snap.PrevDayAverage, 1), Signed(changePercent(snap.CurrentPrice, snap.PrevDayAverage), 2))
	} else {
		fmt.Fprintf(tw, "前日均价\t-\n")
	}
	if premium, ok := rep.Reset.Premium(); ok {
		fmt.Fprintf(tw, "重置日溢价\t%s%%\t(%d 个周三)\n", Signed(premium, 2), rep.Reset.ResetDays)
	}
	fmt.Fprintf(tw, "特征行数\t%d\t(训练 %d / 测试 %d)\n", rep.FeatureRows, rep.Training.TrainRows, rep.Training.TestRows)
	fmt.Fprintf(tw, "RMSE\t%s\n", Amount(rep.Training.RMSE, 2))
	fmt.Fprintf(tw, "R²\t%s\n", Amount(rep.Training.R2, 4))

	res := rep.Backtest
	fmt.Fprintf(tw, "\n-- 投资模拟 --\n")
	fmt.Fprintf(tw, "初始资金\t%s\n", Amount(rep.BacktestConfig.InitialBalance, 0))
	fmt.Fprintf(tw, "最终资产\t%s\n", Amount(res.FinalAssetValue, 1))
	fmt.Fprintf(tw, "净收益\t%s\n", Signed(res.NetProfit, 1))
	fmt.Fprintf(tw, "收益率\t%s%%\n", Signed(res.ROIPercent, 4))
	fmt.Fprintf(tw, "买入/卖出\t%d / %d\n", res.Metrics.BuyCount, res.Metrics.SellCount)
	fmt.Fprintf(tw, "胜率\t%s%%\n", Amount(res.Metrics.WinRate*100, 1))
	fmt.Fprintf(tw, "最大回撤\t%s%%\n", Amount(res.Metrics.MaxDrawdown*100, 4))
	fmt.Fprintf(tw, "期末持有\t%d\n", res.Position.Count)

	if len(res.Trades) > 0 {
		fmt.Fprintf(tw, "\n时间\t方向\t价格\t预测价\t预期收益率\t收益\n")
		for _, t := range res.Trades {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.Date.Format(timeFormat),
				t.Type,
				Amount(t.Price, 0),
				Amount(t.PredPrice, 1),
				optionalPercent(t.ExpectedMargin),
				optionalSigned(t.Profit),
			)
		}
	}

	if len(rep.Forecast) > 0 {
		fmt.Fprintf(tw, "\n-- 未来 %d 步预测 --\n", len(rep.Forecast))
		fmt.Fprintf(tw, "时间\t预测价\n")
		for _, p := range sample(rep.Forecast, r.forecastRows) {
			mark := ""
			if market.IsResetDay(p.Date) {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Date.Format(timeFormat), Amount(p.Price, 1), mark)
		}
	}

	return tw.Flush()
}

// notANumber 为非有限值的占位输出。
const notANumber = "-"

// Amount 按 places 位小数四舍五入格式化金额，NaN 与 ±Inf 输出为“-”。
func Amount(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notANumber
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Signed 与 Amount 相同，但正数带“+”号。
func Signed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notANumber
	}
	d := decimal.NewFromFloat(v).Round(places)
	if d.IsPositive() {
		return "+" + d.StringFixed(places)
	}
	return d.StringFixed(places)
}

func changePercent(current, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (current - base) / base * 100
}

func optionalPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return Amount(*v*100, 2) + "%"
}

func optionalSigned(v *float64) string {
	if v == nil {
		return "-"
	}
	return Signed(*v, 1)
}

// sample 均匀抽取至多 n 个点，首尾必定保留。
func sample(points []forecast.Point, n int) []forecast.Point {
	if len(points) <= n {
		return points
	}
	if n == 1 {
		return points[len(points)-1:]
	}
	out := make([]forecast.Point, 0, n)
	last := len(points) - 1
	for i := 0; i < n; i++ {
		out = append(out, points[i*last/(n-1)])
	}
	return out
}
