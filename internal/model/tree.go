package model

import (
	"math/rand/v2"
	"slices"
)

type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	leaf      bool
}

// regressionTree 为按方差缩减分裂的 CART 回归树。
type regressionTree struct {
	nodes []treeNode
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type treeBuilder struct {
	x              [][]float64
	y              []float64
	maxDepth       int
	minSamplesLeaf int
	tree           *regressionTree
}

// fitTree 在自助采样后的样本上训练一棵树。
func fitTree(x [][]float64, y []float64, maxDepth, minSamplesLeaf int, rng *rand.Rand) *regressionTree {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = rng.IntN(len(y))
	}

	b := &treeBuilder{
		x:              x,
		y:              y,
		maxDepth:       maxDepth,
		minSamplesLeaf: minSamplesLeaf,
		tree:           &regressionTree{},
	}
	b.grow(idx, 0)
	return b.tree
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	pos := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, treeNode{leaf: true, value: b.mean(idx)})

	if depth >= b.maxDepth || len(idx) < 2*b.minSamplesLeaf {
		return pos
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return pos
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.nodes[pos] = treeNode{feature: feature, threshold: threshold, left: l, right: r}
	return pos
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

// bestSplit 在所有特征上寻找使 SSE 降幅最大的阈值。
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	total := 0.0
	for _, i := range idx {
		total += b.y[i]
	}
	parentScore := total * total / float64(n)

	bestFeature, bestThreshold := -1, 0.0
	bestScore := parentScore + 1e-12

	sorted := make([]int, n)
	for f := range b.x[idx[0]] {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(a, c int) int {
			switch {
			case b.x[a][f] < b.x[c][f]:
				return -1
			case b.x[a][f] > b.x[c][f]:
				return 1
			default:
				return 0
			}
		})

		leftSum := 0.0
		for p := 1; p < n; p++ {
			leftSum += b.y[sorted[p-1]]
			if p < b.minSamplesLeaf || n-p < b.minSamplesLeaf {
				continue
			}
			lo, hi := b.x[sorted[p-1]][f], b.x[sorted[p]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(p) + rightSum*rightSum/float64(n-p)
			if score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}
