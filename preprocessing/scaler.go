// Package preprocessing provides column scalers applied to feature matrices
// before they reach an ensemble.
package preprocessing

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/pkg/errors"
)

func init() {
	gob.Register(&StandardScaler{})
	gob.Register(&MinMaxScaler{})
}

// scaleEpsilon below which a column is treated as constant.
const scaleEpsilon = 1e-8

var (
	_ model.Transformer = (*StandardScaler)(nil)
	_ model.Transformer = (*MinMaxScaler)(nil)
)

// StandardScaler はデータを平均0、標準偏差1に変換する
type StandardScaler struct {
	State *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64
	// Scale は各特徴量の標準偏差（定数列は1）
	Scale []float64

	WithMean bool
	WithStd  bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		State:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes the column means and population standard deviations.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd && std >= scaleEpsilon {
			s.Scale[j] = std
		}
	}
	if err := errors.CheckNumericalStability("StandardScaler.Fit", s.Mean, 0); err != nil {
		return err
	}

	s.State.SetFitted(c, r)
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("Transform", X, func(v float64, j int) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("InverseTransform", X, func(v float64, j int) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

func (s *StandardScaler) apply(method string, X mat.Matrix, fn func(v float64, j int) float64) (mat.Matrix, error) {
	if err := s.State.RequireFitted("StandardScaler", method); err != nil {
		return nil, err
	}
	return applyColumns("StandardScaler."+method, s.State, X, fn)
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	if !s.State.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	nFeatures, _ := s.State.GetDimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)", s.WithMean, s.WithStd, nFeatures)
}

// MinMaxScaler はデータを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	State *model.StateManager

	DataMin []float64
	DataMax []float64
	// Scale は (range_max - range_min) / (data_max - data_min)
	Scale []float64

	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		State:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault は範囲[0,1]のMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit は各列の最小値と最大値を記録する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "min must be smaller than max", m.FeatureRange)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)
	width := m.FeatureRange[1] - m.FeatureRange[0]
	for j := 0; j < c; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi
		m.Scale[j] = width
		if hi-lo >= scaleEpsilon {
			m.Scale[j] = width / (hi - lo)
		}
	}

	m.State.SetFitted(c, r)
	return nil
}

// Transform は学習済みの範囲でデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.State.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	return applyColumns("MinMaxScaler.Transform", m.State, X, func(v float64, j int) float64 {
		return (v-m.DataMin[j])*m.Scale[j] + m.FeatureRange[0]
	})
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.State.RequireFitted("MinMaxScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	return applyColumns("MinMaxScaler.InverseTransform", m.State, X, func(v float64, j int) float64 {
		return (v-m.FeatureRange[0])/m.Scale[j] + m.DataMin[j]
	})
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"feature_range": m.FeatureRange}
}

func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.FeatureRange[0], m.FeatureRange[1])
}

// applyColumns maps fn over X after checking its width against state.
func applyColumns(op string, state *model.StateManager, X mat.Matrix, fn func(v float64, j int) float64) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := state.CheckFeatures(op, c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return fn(v, j) }, X)
	return out, nil
}
