package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"Perfect accuracy", []float64{0, 1, 2, 1, 0}, []float64{0, 1, 2, 1, 0}, 1.0},
		{"80% accuracy", []float64{0, 1, 2, 1, 0}, []float64{0, 1, 1, 1, 0}, 0.8},
		{"Zero accuracy", []float64{0, 0, 0}, []float64{1, 1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yTrue := mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			yPred := mat.NewDense(len(tt.yPred), 1, tt.yPred)

			got, err := Accuracy(yTrue, yPred)
			if err != nil {
				t.Fatalf("Accuracy() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracyLabels(t *testing.T) {
	got, err := AccuracyLabels([]int{1, 2, 3, 4}, []int{1, 2, 0, 4})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.75 {
		t.Errorf("AccuracyLabels() = %v, want 0.75", got)
	}

	if _, err := AccuracyLabels(nil, nil); err == nil {
		t.Error("expected error for empty labels")
	}
	if _, err := AccuracyLabels([]int{1}, []int{1, 2}); err == nil {
		t.Error("expected error for length mismatch")
	}
}
