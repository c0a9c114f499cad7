// Package genbooster provides randomized-feature ensembles for Go: gradient
// boosting, AdaBoost regression and bagging over arbitrary base learners,
// each fitted on the inputs augmented with random nonlinear hidden features.
//
// The API follows the scikit-learn conventions used throughout the module:
// models are built with functional options, fitted with Fit and queried with
// Predict and Score on gonum matrices.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/genbooster/ensemble"
//	    "github.com/YuminosukeSato/genbooster/sklearn/linear_model"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
//	    y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
//
//	    booster, err := ensemble.NewBooster(linear_model.RidgeFactory(0.1),
//	        ensemble.WithNEstimators(50),
//	        ensemble.WithLearningRate(0.1),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := booster.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    predictions, err := booster.Predict(mat.NewDense(2, 1, []float64{5, 6}))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("Predictions:", mat.Formatted(predictions))
//	}
//
// # Packages
//
//   - augment: random hidden-feature augmentation (W, b, activation, dropout)
//   - ensemble: Booster, AdaBoost and RandomBag plus training callbacks
//   - multiclass: one-vs-rest classification over any ensemble
//   - sklearn/linear_model: LinearRegression, Ridge and ElasticNet base learners
//   - sklearn/tree: randomized regression trees as base learners
//   - preprocessing: StandardScaler and MinMaxScaler
//   - metrics: MSE, RMSE, MAE, R² and accuracy
//   - config: viper-backed settings for the genbooster command
//   - core/model, core/parallel, core/rng: shared interfaces, worker helpers
//     and seeded random streams
//
// # Reproducibility
//
// Every random draw is derived from the ensemble seed and a named stream, so
// two fits with the same seed and data produce identical models regardless
// of the number of workers.
package genbooster
