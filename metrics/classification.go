package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

// Accuracy は正解ラベルと予測ラベルの一致率を計算する
func Accuracy(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(t)), nil
}

// AccuracyLabels is Accuracy over integer label slices.
func AccuracyLabels(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("AccuracyLabels", "empty vector")
	}
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("AccuracyLabels", len(yTrue), len(yPred), 0)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}
