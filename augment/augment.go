// Package augment builds random hidden features for the boosting rounds.
//
// An Augmenter draws a fixed weight matrix W (p×h) and bias b (h) once, then
// maps any n×p matrix X to [X | act(X·W + b)] (or act(X·W + b) without the
// direct link). The same W and b serve every round of an ensemble; only the
// optional training-time dropout mask changes between rounds.
package augment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/genbooster/core/parallel"
	"github.com/YuminosukeSato/genbooster/core/rng"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
)

// Distribution selects how hidden weights (and AdaBoost initial sample
// weights) are drawn.
type Distribution string

const (
	// Uniform draws hidden weights from U(-1, 1).
	Uniform Distribution = "uniform"
	// Normal draws hidden weights from N(0, 1).
	Normal Distribution = "normal"
)

// Activation names the elementwise nonlinearity applied to X·W + b.
type Activation string

const (
	ReLU    Activation = "relu"
	Tanh    Activation = "tanh"
	Sigmoid Activation = "sigmoid"
)

// parallelRowThreshold is the row count above which activation and dropout
// are applied in parallel row chunks.
const parallelRowThreshold = 2048

// Spec configures an Augmenter.
type Spec struct {
	NHiddenFeatures int
	DirectLink      bool
	Seed            uint64
	DropoutRate     float64
	Distribution    Distribution
	Activation      Activation
}

// DefaultSpec returns five ReLU hidden features with the direct link on,
// uniform weights, no dropout and seed 42.
func DefaultSpec() Spec {
	return Spec{
		NHiddenFeatures: 5,
		DirectLink:      true,
		Seed:            rng.DefaultSeed,
		Distribution:    Uniform,
		Activation:      ReLU,
	}
}

// Validate checks the spec independently of the input width.
func (s Spec) Validate() error {
	if s.NHiddenFeatures < 0 {
		return scigoErrors.NewValidationError("n_hidden_features", "must be non-negative", s.NHiddenFeatures)
	}
	if s.NHiddenFeatures == 0 && !s.DirectLink {
		return scigoErrors.NewValidationError("n_hidden_features", "must be positive when direct_link is false", s.NHiddenFeatures)
	}
	if math.IsNaN(s.DropoutRate) || s.DropoutRate < 0 || s.DropoutRate >= 1 {
		return scigoErrors.NewValidationError("dropout", "must be in [0, 1)", s.DropoutRate)
	}
	switch s.Distribution {
	case Uniform, Normal:
	default:
		return scigoErrors.NewValidationError("weights_distribution", "must be \"uniform\" or \"normal\"", s.Distribution)
	}
	if _, ok := activations[s.Activation]; !ok {
		return scigoErrors.NewValidationError("activation", "must be one of relu, tanh, sigmoid", s.Activation)
	}
	return nil
}

var activations = map[Activation]func(float64) float64{
	ReLU: func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	},
	Tanh: math.Tanh,
	Sigmoid: func(v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	},
}

// Augmenter holds the fixed random projection. Fields are exported for gob.
type Augmenter struct {
	NInputs int
	Spec    Spec
	W       *mat.Dense // NInputs×NHiddenFeatures, nil when NHiddenFeatures is 0
	B       []float64
}

// New validates spec and draws W and b from the (Seed, weights) stream.
func New(nInputs int, spec Spec) (*Augmenter, error) {
	if nInputs <= 0 {
		return nil, scigoErrors.NewValidationError("n_features", "must be positive", nInputs)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	a := &Augmenter{NInputs: nInputs, Spec: spec}
	h := spec.NHiddenFeatures
	if h == 0 {
		return a, nil
	}

	src := rng.NewSource(spec.Seed, rng.StreamWeights, 0)
	var draw func() float64
	if spec.Distribution == Normal {
		draw = distuv.Normal{Mu: 0, Sigma: 1, Src: src}.Rand
	} else {
		draw = distuv.Uniform{Min: -1, Max: 1, Src: src}.Rand
	}

	w := make([]float64, nInputs*h)
	for i := range w {
		w[i] = draw()
	}
	a.W = mat.NewDense(nInputs, h, w)
	a.B = make([]float64, h)
	for j := range a.B {
		a.B[j] = draw()
	}
	return a, nil
}

// OutputDim returns the column count of Transform's result.
func (a *Augmenter) OutputDim() int {
	d := a.Spec.NHiddenFeatures
	if a.Spec.DirectLink {
		d += a.NInputs
	}
	return d
}

// Transform returns a new matrix holding the augmented features of X. When
// applyDropout is true and the dropout rate is positive, each hidden
// activation is zeroed with probability DropoutRate and survivors are scaled
// by 1/(1-DropoutRate); the mask is drawn from the (Seed, dropout, index)
// stream, where index is the boosting round or bagging member. X is never
// modified.
func (a *Augmenter) Transform(X mat.Matrix, index int, applyDropout bool) (*mat.Dense, error) {
	n, p := X.Dims()
	if p != a.NInputs {
		return nil, scigoErrors.NewDimensionError("Augmenter.Transform", a.NInputs, p, 1)
	}

	out := mat.NewDense(n, a.OutputDim(), nil)
	offset := 0
	if a.Spec.DirectLink {
		out.Slice(0, n, 0, p).(*mat.Dense).Copy(X)
		offset = p
	}

	h := a.Spec.NHiddenFeatures
	if h == 0 {
		return out, nil
	}

	hidden := out.Slice(0, n, offset, offset+h).(*mat.Dense)
	hidden.Mul(X, a.W)

	var mask []float64
	if applyDropout && a.Spec.DropoutRate > 0 {
		mask = a.dropoutMask(n*h, index)
	}

	act := activations[a.Spec.Activation]
	parallel.ParallelizeWithThreshold(n, parallelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < h; j++ {
				v := act(hidden.At(i, j) + a.B[j])
				if mask != nil {
					v *= mask[i*h+j]
				}
				hidden.Set(i, j, v)
			}
		}
	})
	return out, nil
}

// dropoutMask draws the row-major inverted-dropout multipliers for size
// hidden activations.
func (a *Augmenter) dropoutMask(size, index int) []float64 {
	rate := a.Spec.DropoutRate
	keep := 1 / (1 - rate)
	u := distuv.Uniform{Min: 0, Max: 1, Src: rng.NewSource(a.Spec.Seed, rng.StreamDropout, index)}
	mask := make([]float64, size)
	for i := range mask {
		if u.Rand() >= rate {
			mask[i] = keep
		}
	}
	return mask
}

func (a *Augmenter) String() string {
	return fmt.Sprintf("Augmenter(n_inputs=%d, n_hidden=%d, direct_link=%t, activation=%s)",
		a.NInputs, a.Spec.NHiddenFeatures, a.Spec.DirectLink, a.Spec.Activation)
}
