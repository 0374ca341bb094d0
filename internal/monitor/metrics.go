package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 分析运行状态标签。
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
	StatusError            = "error"
)

// Recorder 以 Prometheus 指标记录分析运行情况。
type Recorder struct {
	runs         *prometheus.CounterVec
	trainSeconds prometheus.Histogram
	roi          *prometheus.GaugeVec
	rmse         *prometheus.GaugeVec
}

// NewRecorder 在 reg 上注册指标，reg 为空时使用默认注册表。
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lostark",
				Subsystem: "analysis",
				Name:      "runs_total",
				Help:      "Analysis runs by status",
			},
			[]string{"status"},
		),
		trainSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lostark",
				Subsystem: "model",
				Name:      "train_seconds",
				Help:      "Duration of model training in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		roi: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lostark",
				Subsystem: "backtest",
				Name:      "roi_percent",
				Help:      "Latest backtest ROI percent per item",
			},
			[]string{"item"},
		),
		rmse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lostark",
				Subsystem: "model",
				Name:      "rmse",
				Help:      "Latest held-out RMSE per item",
			},
			[]string{"item"},
		),
	}
}

// ObserveRun 记录一次运行的结果状态。
func (r *Recorder) ObserveRun(status string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
}

// ObserveTraining 记录训练耗时与误差。
func (r *Recorder) ObserveTraining(item string, d time.Duration, rmse float64) {
	if r == nil {
		return
	}
	r.trainSeconds.Observe(d.Seconds())
	r.rmse.WithLabelValues(item).Set(rmse)
}

// ObserveBacktest 记录最新回测收益率。
func (r *Recorder) ObserveBacktest(item string, roiPercent float64) {
	if r == nil {
		return
	}
	r.roi.WithLabelValues(item).Set(roiPercent)
}
