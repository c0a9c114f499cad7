// Package metrics provides regression and classification scores over
// single-column matrices (n×1 *mat.Dense or *mat.VecDense).
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

// columns は2つの列ベクトルを検証してスライスに変換する
func columns(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	t := make([]float64, rTrue)
	p := make([]float64, rPred)
	for i := range t {
		t[i] = yTrue.At(i, 0)
		p[i] = yPred.At(i, 0)
	}
	return t, p, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range t {
		diff := t[i] - p[i]
		sum += diff * diff
	}
	return sum / float64(len(t)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := range t {
		sum += math.Abs(t[i] - p[i])
	}
	return sum / float64(len(t)), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for _, v := range t {
		yMean += v
	}
	yMean /= float64(len(t))

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range t {
		tss += (t[i] - yMean) * (t[i] - yMean)
		rss += (t[i] - p[i]) * (t[i] - p[i])
	}

	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}
