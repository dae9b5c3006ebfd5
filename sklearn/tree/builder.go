// Package tree grows the regression trees shared by the ensemble learners.
//
// Trees are grown leaf-wise from per-sample gradients and hessians: at every step
// the leaf whose best split has the largest gain is split, until NumLeaves is
// reached or no split improves the objective. Split gain and leaf values follow
// the second-order boosting formulas
//
//	gain  = 0.5 * (GL²/(HL+λ) + GR²/(HR+λ) - G²/(H+λ))
//	value = -G / (H + λ)
//
// With gradient -y and hessian 1 the leaf value is the mean label, which is how
// the random forest reuses the same Builder.
package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const epsilon = 1e-10

// Params controls tree growth.
type Params struct {
	NumLeaves      int     // 最大葉数 (>= 2)
	MinDataInLeaf  int     // 葉に必要な最小サンプル数
	Lambda         float64 // L2 正則化
	MinGainToSplit float64 // これ以下のゲインでは分割しない
	MaxDepth       int     // <= 0 は無制限
	MaxBin         int     // 特徴量ごとのヒストグラムのビン数上限
}

// Node is one node of a Tree. Leaves have Leaf set and Left/Right = -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
	Count     int
	Leaf      bool
}

// Tree is a fitted regression tree. Samples with x[Feature] <= Threshold go left.
type Tree struct {
	Nodes     []Node
	NumLeaves int
}

// Predict returns the leaf value for row.
func (t *Tree) Predict(row []float64) float64 {
	n := 0
	for !t.Nodes[n].Leaf {
		node := &t.Nodes[n]
		if row[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value
}

// Scale multiplies every leaf value by factor.
func (t *Tree) Scale(factor float64) {
	for i := range t.Nodes {
		if t.Nodes[i].Leaf {
			t.Nodes[i].Value *= factor
		}
	}
}

// AddGains accumulates each split's gain into dst[feature].
func (t *Tree) AddGains(dst []float64) {
	for _, n := range t.Nodes {
		if !n.Leaf {
			dst[n.Feature] += n.Gain
		}
	}
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(n, d int) int
	walk = func(n, d int) int {
		if t.Nodes[n].Leaf {
			return d
		}
		return max(walk(t.Nodes[n].Left, d+1), walk(t.Nodes[n].Right, d+1))
	}
	return walk(0, 0)
}

// Builder grows trees over a fixed feature matrix. Feature values are bucketed
// into at most MaxBin histogram bins once, up front; split search then scans
// per-leaf histograms. Build never mutates the Builder, so concurrent Build calls
// are safe.
type Builder struct {
	params Params
	rows   int
	cols   int
	data   []float64   // row-major copy of X
	bins   [][]uint16  // bins[j][i]: bin of sample i on feature j
	bounds [][]float64 // bounds[j][k]: upper edge of bin k (x <= bound goes to bin k)
}

// DefaultMaxBin is used when Params.MaxBin is not set.
const DefaultMaxBin = 255

// NewBuilder copies and bins X.
func NewBuilder(X mat.Matrix, params Params) *Builder {
	r, c := X.Dims()
	if params.NumLeaves < 2 {
		params.NumLeaves = 2
	}
	if params.MinDataInLeaf < 1 {
		params.MinDataInLeaf = 1
	}
	if params.MaxBin < 2 || params.MaxBin > 65535 {
		params.MaxBin = DefaultMaxBin
	}

	b := &Builder{
		params: params,
		rows:   r,
		cols:   c,
		data:   make([]float64, r*c),
		bins:   make([][]uint16, c),
		bounds: make([][]float64, c),
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			b.data[i*c+j] = X.At(i, j)
		}
	}

	column := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			column[i] = b.data[i*c+j]
		}
		b.bounds[j] = binBoundaries(column, params.MaxBin)
		b.bins[j] = make([]uint16, r)
		for i, v := range column {
			b.bins[j][i] = uint16(sort.SearchFloat64s(b.bounds[j], v))
		}
	}
	return b
}

// binBoundaries returns sorted bin edges: midpoints between distinct values,
// thinned to at most maxBin-1 edges by taking evenly spaced ranks.
func binBoundaries(values []float64, maxBin int) []float64 {
	uniq := make([]float64, len(values))
	copy(uniq, values)
	sort.Float64s(uniq)
	n := 0
	for i, v := range uniq {
		if i == 0 || v != uniq[n-1] {
			uniq[n] = v
			n++
		}
	}
	uniq = uniq[:n]
	if n < 2 {
		return nil
	}

	if n <= maxBin {
		bounds := make([]float64, n-1)
		for k := 0; k < n-1; k++ {
			bounds[k] = (uniq[k] + uniq[k+1]) / 2
		}
		return bounds
	}

	bounds := make([]float64, 0, maxBin-1)
	last := 0
	for k := 1; k < maxBin; k++ {
		rank := k * n / maxBin
		if rank <= last {
			continue
		}
		bounds = append(bounds, (uniq[rank-1]+uniq[rank])/2)
		last = rank
	}
	return bounds
}

// Rows returns the number of training rows.
func (b *Builder) Rows() int { return b.rows }

// Cols returns the number of features.
func (b *Builder) Cols() int { return b.cols }

// Row returns the i-th row. The slice aliases the Builder's data.
func (b *Builder) Row(i int) []float64 {
	return b.data[i*b.cols : (i+1)*b.cols]
}

type split struct {
	feature    int
	bin        int
	threshold  float64
	gain       float64
	leftCount  int
	rightCount int
}

func (s split) valid() bool {
	return s.feature >= 0
}

type frontierLeaf struct {
	node    int
	indices []int
	depth   int
	best    split
}

// Build grows one tree over the samples in indices (repeats allowed, as in a
// bootstrap sample) using only the given features; nil features means all.
func (b *Builder) Build(grad, hess []float64, indices []int, features []int) *Tree {
	if features == nil {
		features = make([]int, b.cols)
		for j := range features {
			features[j] = j
		}
	}

	t := &Tree{}
	root := b.newLeaf(t, grad, hess, indices)
	frontier := []*frontierLeaf{{node: root, indices: indices}}
	frontier[0].best = b.findBestSplit(grad, hess, indices, features)
	t.NumLeaves = 1

	for t.NumLeaves < b.params.NumLeaves {
		// 最大ゲインの葉を選ぶ。同点は先に作られた葉。
		pick := -1
		for k, leaf := range frontier {
			if !leaf.best.valid() || leaf.best.gain <= b.params.MinGainToSplit {
				continue
			}
			if b.params.MaxDepth > 0 && leaf.depth >= b.params.MaxDepth {
				continue
			}
			if pick < 0 || leaf.best.gain > frontier[pick].best.gain {
				pick = k
			}
		}
		if pick < 0 {
			break
		}

		leaf := frontier[pick]
		left, right := b.partition(leaf.indices, leaf.best)

		leftNode := b.newLeaf(t, grad, hess, left)
		rightNode := b.newLeaf(t, grad, hess, right)
		parent := &t.Nodes[leaf.node]
		parent.Leaf = false
		parent.Feature = leaf.best.feature
		parent.Threshold = leaf.best.threshold
		parent.Gain = leaf.best.gain
		parent.Left = leftNode
		parent.Right = rightNode
		t.NumLeaves++

		children := []*frontierLeaf{
			{node: leftNode, indices: left, depth: leaf.depth + 1},
			{node: rightNode, indices: right, depth: leaf.depth + 1},
		}
		for _, c := range children {
			c.best = b.findBestSplit(grad, hess, c.indices, features)
		}
		frontier = append(append(frontier[:pick:pick], frontier[pick+1:]...), children...)
	}
	return t
}

func (b *Builder) newLeaf(t *Tree, grad, hess []float64, indices []int) int {
	var g, h float64
	for _, idx := range indices {
		g += grad[idx]
		h += hess[idx]
	}
	t.Nodes = append(t.Nodes, Node{
		Left:  -1,
		Right: -1,
		Value: -g / (h + b.params.Lambda + epsilon),
		Count: len(indices),
		Leaf:  true,
	})
	return len(t.Nodes) - 1
}

func (b *Builder) partition(indices []int, s split) (left, right []int) {
	left = make([]int, 0, s.leftCount)
	right = make([]int, 0, s.rightCount)
	for _, idx := range indices {
		if int(b.bins[s.feature][idx]) <= s.bin {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func (b *Builder) findBestSplit(grad, hess []float64, indices []int, features []int) split {
	best := split{feature: -1, gain: math.Inf(-1)}
	if len(indices) < 2*b.params.MinDataInLeaf {
		return best
	}

	var totalGrad, totalHess float64
	for _, idx := range indices {
		totalGrad += grad[idx]
		totalHess += hess[idx]
	}
	lambda := b.params.Lambda + epsilon
	parentScore := totalGrad * totalGrad / (totalHess + lambda)

	var histGrad, histHess []float64
	var histCount []int
	for _, j := range features {
		numBins := len(b.bounds[j]) + 1
		if numBins < 2 {
			continue
		}
		histGrad = resize(histGrad, numBins)
		histHess = resize(histHess, numBins)
		if cap(histCount) < numBins {
			histCount = make([]int, numBins)
		}
		histCount = histCount[:numBins]
		for k := range histCount {
			histCount[k] = 0
		}

		column := b.bins[j]
		for _, idx := range indices {
			bin := column[idx]
			histGrad[bin] += grad[idx]
			histHess[bin] += hess[idx]
			histCount[bin]++
		}

		var leftGrad, leftHess float64
		leftCount := 0
		for k := 0; k < numBins-1; k++ {
			leftGrad += histGrad[k]
			leftHess += histHess[k]
			leftCount += histCount[k]
			if histCount[k] == 0 {
				continue
			}
			rightCount := len(indices) - leftCount
			if leftCount < b.params.MinDataInLeaf {
				continue
			}
			if rightCount < b.params.MinDataInLeaf {
				break
			}

			rightGrad := totalGrad - leftGrad
			rightHess := totalHess - leftHess
			gain := 0.5 * (leftGrad*leftGrad/(leftHess+lambda) +
				rightGrad*rightGrad/(rightHess+lambda) - parentScore)
			if gain > best.gain {
				best = split{
					feature:    j,
					bin:        k,
					threshold:  b.bounds[j][k],
					gain:       gain,
					leftCount:  leftCount,
					rightCount: rightCount,
				}
			}
		}
	}
	return best
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}
