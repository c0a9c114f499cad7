// Package tree provides a randomized regression tree usable as a base
// learner. Split thresholds are drawn at random per candidate feature and the
// best of them by weighted squared error is kept.
package tree

import (
	"encoding/gob"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/core/rng"
	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

func init() {
	gob.Register(&ExtraTreeRegressor{})
}

// leafNode marks a Node without children.
const leafNode = -1

// impurityEpsilon below which a node counts as pure.
const impurityEpsilon = 1e-12

// Node is one entry of the flattened tree. Children are indices into
// ExtraTreeRegressor.Nodes; Feature is leafNode for leaves.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Impurity  float64
	NSamples  int
	Weight    float64
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Feature == leafNode }

// ExtraTreeRegressor is an extremely randomized regression tree with native
// sample weight support.
type ExtraTreeRegressor struct {
	State *model.StateManager

	// Hyperparameters
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means all features
	RandomState     uint64

	// Learned parameters
	Nodes              []Node
	FeatureImportances []float64
}

// Option は ExtraTreeRegressor の設定オプション
type Option func(*ExtraTreeRegressor)

// WithMaxDepth は木の最大深さを設定する（0 は無制限）
func WithMaxDepth(depth int) Option {
	return func(t *ExtraTreeRegressor) { t.MaxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(t *ExtraTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(t *ExtraTreeRegressor) { t.MinSamplesLeaf = n }
}

// WithMaxFeatures は各ノードで評価する特徴量数を設定する（0 は全特徴量）
func WithMaxFeatures(n int) Option {
	return func(t *ExtraTreeRegressor) { t.MaxFeatures = n }
}

// WithRandomState は閾値抽選の乱数シードを設定する
func WithRandomState(seed uint64) Option {
	return func(t *ExtraTreeRegressor) { t.RandomState = seed }
}

// NewExtraTreeRegressor creates a tree with unlimited depth,
// min_samples_split 2 and min_samples_leaf 1.
func NewExtraTreeRegressor(options ...Option) *ExtraTreeRegressor {
	t := &ExtraTreeRegressor{
		State:           model.NewStateManager(),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     rng.DefaultSeed,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// ExtraTreeFactory returns a model.Factory of fresh trees built with options.
func ExtraTreeFactory(options ...Option) model.Factory {
	return func() model.Estimator { return NewExtraTreeRegressor(options...) }
}

func (t *ExtraTreeRegressor) validate() error {
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.MinSamplesLeaf)
	}
	if t.MaxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", t.MaxFeatures)
	}
	return nil
}

// Fit はモデルを訓練データで学習
func (t *ExtraTreeRegressor) Fit(X, y mat.Matrix) error {
	return t.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree. sampleWeight nil means unit weights.
func (t *ExtraTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "ExtraTreeRegressor.Fit")

	if err := t.validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("ExtraTreeRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("ExtraTreeRegressor.Fit", 1, yCols, 1)
	}

	w := make([]float64, rows)
	if sampleWeight == nil {
		for i := range w {
			w[i] = 1
		}
	} else {
		if len(sampleWeight) != rows {
			return errors.NewDimensionError("ExtraTreeRegressor.Fit", rows, len(sampleWeight), 0)
		}
		total := 0.0
		for i, v := range sampleWeight {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewValueError("ExtraTreeRegressor.Fit", "sample weights must be finite and non-negative")
			}
			w[i] = v
			total += v
		}
		if total <= 0 {
			return errors.NewValueError("ExtraTreeRegressor.Fit", "sample weights sum to zero")
		}
	}

	b := &builder{
		tree:        t,
		X:           mat.DenseCopyOf(X),
		y:           mat.Col(nil, 0, y),
		w:           w,
		rnd:         rng.New(t.RandomState, rng.StreamLearner, 0),
		importances: make([]float64, cols),
	}
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}

	t.Nodes = t.Nodes[:0]
	b.grow(idx, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}
	t.FeatureImportances = b.importances
	t.State.SetFitted(cols, rows)
	return nil
}

type builder struct {
	tree        *ExtraTreeRegressor
	X           *mat.Dense
	y           []float64
	w           []float64
	rnd         *rand.Rand
	importances []float64
}

// stats returns the weighted mean, variance and total weight of idx.
func (b *builder) stats(idx []int) (mean, variance, weight float64) {
	var wy, wyy float64
	for _, i := range idx {
		weight += b.w[i]
		wy += b.w[i] * b.y[i]
		wyy += b.w[i] * b.y[i] * b.y[i]
	}
	if weight == 0 {
		return 0, 0, 0
	}
	mean = wy / weight
	variance = math.Max(wyy/weight-mean*mean, 0)
	return mean, variance, weight
}

type split struct {
	feature   int
	threshold float64
	left      []int
	right     []int
	sse       float64
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	t := b.tree
	mean, variance, weight := b.stats(idx)
	nodeID := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Feature:  leafNode,
		Left:     leafNode,
		Right:    leafNode,
		Value:    mean,
		Impurity: variance,
		NSamples: len(idx),
		Weight:   weight,
	})

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		len(idx) < t.MinSamplesSplit ||
		len(idx) < 2*t.MinSamplesLeaf ||
		variance <= impurityEpsilon {
		return nodeID
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return nodeID
	}

	_, lv, lw := b.stats(best.left)
	_, rv, rw := b.stats(best.right)
	b.importances[best.feature] += weight*variance - lw*lv - rw*rv

	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	t.Nodes[nodeID].Feature = best.feature
	t.Nodes[nodeID].Threshold = best.threshold
	t.Nodes[nodeID].Left = left
	t.Nodes[nodeID].Right = right
	return nodeID
}

// bestSplit draws one threshold per candidate feature and keeps the split
// with the smallest weighted squared error. Constant features do not count
// towards MaxFeatures.
func (b *builder) bestSplit(idx []int) (split, bool) {
	_, p := b.X.Dims()
	maxFeatures := b.tree.MaxFeatures
	if maxFeatures == 0 || maxFeatures > p {
		maxFeatures = p
	}

	var best split
	found := false
	visited := 0
	for _, j := range b.rnd.Perm(p) {
		if visited >= maxFeatures {
			break
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := b.X.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi <= lo {
			continue
		}
		visited++

		threshold := lo + b.rnd.Float64()*(hi-lo)
		var left, right []int
		for _, i := range idx {
			if b.X.At(i, j) <= threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) < b.tree.MinSamplesLeaf || len(right) < b.tree.MinSamplesLeaf {
			continue
		}
		_, lv, lw := b.stats(left)
		_, rv, rw := b.stats(right)
		// 重みゼロの子は値が定まらない
		if lw == 0 || rw == 0 {
			continue
		}
		sse := lw*lv + rw*rv
		if !found || sse < best.sse {
			best = split{feature: j, threshold: threshold, left: left, right: right, sse: sse}
			found = true
		}
	}
	return best, found
}

// Predict は入力データに対する予測を行う
func (t *ExtraTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.State.RequireFitted("ExtraTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := t.State.CheckFeatures("ExtraTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		node := t.Nodes[0]
		for !node.IsLeaf() {
			if X.At(i, node.Feature) <= node.Threshold {
				node = t.Nodes[node.Left]
			} else {
				node = t.Nodes[node.Right]
			}
		}
		out.Set(i, 0, node.Value)
	}
	return out, nil
}

// Depth returns the depth of the fitted tree; a single leaf has depth 0.
func (t *ExtraTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(id int) int
	walk = func(id int) int {
		n := t.Nodes[id]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// NLeaves returns the number of leaves.
func (t *ExtraTreeRegressor) NLeaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			count++
		}
	}
	return count
}

// GetParams はハイパーパラメータを返す
func (t *ExtraTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      t.RandomState,
	}
}
