package model

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestConfig 描述随机森林参数。
type ForestConfig struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           int64
}

// DefaultForestConfig 返回默认参数：200 棵树，种子 42。
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:          200,
		MaxDepth:       12,
		MinSamplesLeaf: 2,
		Seed:           42,
	}
}

func (c ForestConfig) normalize() ForestConfig {
	def := DefaultForestConfig()
	if c.Trees <= 0 {
		c.Trees = def.Trees
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = def.MinSamplesLeaf
	}
	return c
}

// RandomForest 为自助采样回归树的集成，预测为各树均值。
type RandomForest struct {
	trees []*regressionTree
}

// FitForest 并行训练随机森林。每棵树使用由 Seed 派生的独立随机源，结果与调度顺序无关。
func FitForest(ctx context.Context, x [][]float64, y []float64, cfg ForestConfig) (*RandomForest, error) {
	if len(x) == 0 {
		return nil, ErrNotEnoughSamples
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("model: 特征行数 %d 与目标数 %d 不一致", len(x), len(y))
	}
	features := len(x[0])
	for i, row := range x {
		if len(row) != features {
			return nil, fmt.Errorf("model: 第 %d 行特征数 %d，期望 %d", i, len(row), features)
		}
	}

	cfg = cfg.normalize()
	trees := make([]*regressionTree, cfg.Trees)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(t)))
			trees[t] = fitTree(x, y, cfg.MaxDepth, cfg.MinSamplesLeaf, rng)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("model: 训练随机森林失败: %w", err)
	}

	return &RandomForest{trees: trees}, nil
}

// Predict 实现 Regressor。
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

// Trees 返回树的数量。
func (f *RandomForest) Trees() int {
	return len(f.trees)
}

// ErrNotEnoughSamples 表示训练集或测试集为空。
var ErrNotEnoughSamples = errors.New("model: 样本不足")
