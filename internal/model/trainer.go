package model

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xx6620/lostark-quant/internal/feature"
)

// DefaultTrainRatio 为按时间切分的训练集比例。
const DefaultTrainRatio = 0.8

// TrainConfig 描述训练流程参数。
type TrainConfig struct {
	Forest     ForestConfig
	TrainRatio float64
}

// TrainResult 汇总训练与留出集评估结果。
type TrainResult struct {
	Model      Regressor
	SplitIndex int
	TestDates  []time.Time
	Actual     []float64
	Predicted  []float64
	RMSE       float64
	R2         float64
	Duration   time.Duration
}

// Trainer 在特征表上训练模型并在时间顺序的留出集上评估。
type Trainer struct {
	cfg    TrainConfig
	logger *zap.Logger
}

// NewTrainer 创建训练器。
func NewTrainer(cfg TrainConfig, logger *zap.Logger) *Trainer {
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = DefaultTrainRatio
	}
	cfg.Forest = cfg.Forest.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// SplitIndex 返回按时间切分的位置，前 split 行用于训练，不打乱顺序。
func SplitIndex(n int, ratio float64) int {
	return int(float64(n) * ratio)
}

// Train 训练随机森林并在尾部留出集上计算 RMSE 与 R²。
func (t *Trainer) Train(ctx context.Context, ds feature.Dataset) (TrainResult, error) {
	split := SplitIndex(ds.Len(), t.cfg.TrainRatio)
	if split == 0 || split >= ds.Len() {
		return TrainResult{}, fmt.Errorf("%w: 共 %d 行，切分点 %d", ErrNotEnoughSamples, ds.Len(), split)
	}

	started := time.Now()
	x := ds.Matrix()
	y := ds.Targets()

	forest, err := FitForest(ctx, x[:split], y[:split], t.cfg.Forest)
	if err != nil {
		return TrainResult{}, err
	}

	actual := append([]float64(nil), y[split:]...)
	predicted := PredictAll(forest, x[split:])

	result := TrainResult{
		Model:      forest,
		SplitIndex: split,
		TestDates:  ds.Dates()[split:],
		Actual:     actual,
		Predicted:  predicted,
		RMSE:       RMSE(actual, predicted),
		R2:         R2(actual, predicted),
		Duration:   time.Since(started),
	}

	t.logger.Info("模型训练完成",
		zap.String("item", ds.Item.Label()),
		zap.Int("train_rows", split),
		zap.Int("test_rows", len(actual)),
		zap.Float64("rmse", result.RMSE),
		zap.Float64("r2", result.R2),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// RMSE 计算均方根误差。
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// R2 计算决定系数。实际值无方差时，完全拟合返回1，否则返回0。
func R2(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i, v := range actual {
		ssRes += (v - predicted[i]) * (v - predicted[i])
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
