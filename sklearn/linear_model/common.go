package linear_model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/metrics"
	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

// validateFit は学習データの形状と重みを検証する
func validateFit(op string, X, y mat.Matrix, sampleWeight []float64) (int, int, error) {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if sampleWeight != nil {
		if len(sampleWeight) != rows {
			return 0, 0, errors.NewDimensionError(op, rows, len(sampleWeight), 0)
		}
		sum := 0.0
		for _, w := range sampleWeight {
			if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return 0, 0, errors.NewValueError(op, "sample weights must be finite and non-negative")
			}
			sum += w
		}
		if sum <= 0 {
			return 0, 0, errors.NewValueError(op, "sample weights sum to zero")
		}
	}
	return rows, cols, nil
}

// design holds the (weighted) centered problem shared by the linear solvers.
type design struct {
	X      *mat.Dense // rows scaled by sqrt(w), columns centered
	y      *mat.VecDense
	xMean  []float64
	yMean  float64
	weight []float64 // rescaled to mean one
}

// newDesign centers X and y with weighted means when fitIntercept is set and
// scales each row by sqrt(w_i). Weights are rescaled to mean one so that
// regularization strengths keep their unweighted meaning.
func newDesign(X, y mat.Matrix, sampleWeight []float64, fitIntercept bool) *design {
	n, p := X.Dims()
	w := make([]float64, n)
	if sampleWeight == nil {
		for i := range w {
			w[i] = 1
		}
	} else {
		sum := 0.0
		for _, v := range sampleWeight {
			sum += v
		}
		for i, v := range sampleWeight {
			w[i] = v * float64(n) / sum
		}
	}

	d := &design{xMean: make([]float64, p), weight: w}
	if fitIntercept {
		total := 0.0
		for i := 0; i < n; i++ {
			total += w[i]
			d.yMean += w[i] * y.At(i, 0)
			for j := 0; j < p; j++ {
				d.xMean[j] += w[i] * X.At(i, j)
			}
		}
		d.yMean /= total
		for j := range d.xMean {
			d.xMean[j] /= total
		}
	}

	d.X = mat.NewDense(n, p, nil)
	d.y = mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		s := math.Sqrt(w[i])
		d.y.SetVec(i, s*(y.At(i, 0)-d.yMean))
		for j := 0; j < p; j++ {
			d.X.Set(i, j, s*(X.At(i, j)-d.xMean[j]))
		}
	}
	return d
}

// intercept recovers the intercept after solving the centered problem.
func (d *design) intercept(coef []float64) float64 {
	b := d.yMean
	for j, c := range coef {
		b -= c * d.xMean[j]
	}
	return b
}

// predictLinear computes X·coef + intercept as an n×1 column.
func predictLinear(op, name string, state *model.StateManager, X mat.Matrix, coef []float64, intercept float64) (mat.Matrix, error) {
	if err := state.RequireFitted(name, "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := state.CheckFeatures(op, cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		v := intercept
		for j := 0; j < cols; j++ {
			v += X.At(i, j) * coef[j]
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// score は決定係数R²を計算する
func score(p model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}
