// Command genbooster fits a randomized-feature ensemble on a CSV file and
// reports its training or held-out score.
//
//	genbooster -config cfg.yaml -data train.csv -test test.csv -plot curve.png -save model.gob
//
// The last CSV column is the target. For classification it must hold
// non-negative integer labels.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/genbooster/config"
	"github.com/YuminosukeSato/genbooster/core/model"
	"github.com/YuminosukeSato/genbooster/ensemble"
	"github.com/YuminosukeSato/genbooster/metrics"
	scigoErrors "github.com/YuminosukeSato/genbooster/pkg/errors"
	"github.com/YuminosukeSato/genbooster/pkg/log"
	"github.com/YuminosukeSato/genbooster/preprocessing"
)

type options struct {
	configPath string
	dataPath   string
	testPath   string
	task       string
	strategy   string
	plotPath   string
	savePath   string
}

// savedModel is what -save writes: the fitted scaler (nil for "none") and
// the fitted ensemble or classifier.
type savedModel struct {
	Scaler model.Transformer
	Model  model.Estimator
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.GetLogger().Error("genbooster failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("genbooster", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML, TOML or JSON config file")
	fs.StringVar(&o.dataPath, "data", "", "training CSV (last column is the target)")
	fs.StringVar(&o.testPath, "test", "", "optional held-out CSV")
	fs.StringVar(&o.task, "task", "", "regression or classification (overrides config)")
	fs.StringVar(&o.strategy, "strategy", "", "booster, adaboost or randombag (overrides config)")
	fs.StringVar(&o.plotPath, "plot", "", "write the per-round learning curve to this image")
	fs.StringVar(&o.savePath, "save", "", "write the fitted model to this gob file")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.dataPath == "" {
		return o, scigoErrors.NewValidationError("data", "a training CSV is required", "")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.task != "" {
		cfg.Task = o.task
	}
	if o.strategy != "" {
		cfg.Strategy = o.strategy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(stderr, cfg.Log.Level, cfg.Log.Pretty); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cmd")
	summary := cfg.Summary()
	fields := make([]any, 0, 2*len(summary))
	for k, v := range summary {
		fields = append(fields, k, v)
	}
	logger.Info("Configuration loaded", fields...)

	X, y, err := readCSV(o.dataPath)
	if err != nil {
		return err
	}
	evalY := mat.Matrix(y)
	var testX mat.Matrix
	if o.testPath != "" {
		tx, ty, err := readCSV(o.testPath)
		if err != nil {
			return err
		}
		testX, evalY = tx, ty
	}

	scaler, err := newScaler(cfg.Scaler)
	if err != nil {
		return err
	}
	trainX := mat.Matrix(X)
	if scaler != nil {
		if trainX, err = scaler.FitTransform(X); err != nil {
			return err
		}
		if testX != nil {
			if testX, err = scaler.Transform(testX); err != nil {
				return err
			}
		}
	}
	evalX := trainX
	if testX != nil {
		evalX = testX
	}

	start := time.Now()
	var (
		fitted  model.Estimator
		history map[string][]float64
	)
	switch cfg.Task {
	case "classification":
		clf, err := cfg.NewClassifier()
		if err != nil {
			return err
		}
		if err := clf.FitContext(ctx, trainX, y); err != nil {
			return err
		}
		acc, err := clf.Score(evalX, evalY)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "classes\t%v\naccuracy\t%.6f\n", clf.ClassLabels(), acc)
		fitted = clf
	default:
		reg, err := cfg.NewRegressor(ensemble.WithCallbacks(ensemble.RecordEvaluation(&history)))
		if err != nil {
			return err
		}
		if err := reg.FitContext(ctx, trainX, y); err != nil {
			return err
		}
		if err := reportRegression(stdout, reg, evalX, evalY); err != nil {
			return err
		}
		fitted = reg
	}
	logger.Info("Fit finished", log.DurationMsKey, time.Since(start).Milliseconds())
	if pg, ok := fitted.(model.ParameterGetter); ok {
		logger.Debug("Model parameters", "params", pg.GetParams())
	}

	if o.plotPath != "" {
		if len(history) == 0 {
			logger.Warn("No per-round history recorded; skipping plot", "strategy", cfg.Strategy, "task", cfg.Task)
		} else if err := plotLearningCurve(history, cfg.Strategy+" learning curve", o.plotPath); err != nil {
			return err
		}
	}
	if o.savePath != "" {
		if err := model.SaveModel(&savedModel{Scaler: scaler, Model: fitted}, o.savePath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved\t%s\n", o.savePath)
	}
	return nil
}

func newScaler(name string) (model.Transformer, error) {
	switch name {
	case "standard":
		return preprocessing.NewStandardScalerDefault(), nil
	case "minmax":
		return preprocessing.NewMinMaxScalerDefault(), nil
	case "none", "":
		return nil, nil
	default:
		return nil, scigoErrors.NewValidationError("scaler", "unknown scaler", name)
	}
}

func reportRegression(w io.Writer, reg model.Predictor, X, y mat.Matrix) error {
	pred, err := reg.Predict(X)
	if err != nil {
		return err
	}
	rmse, err := metrics.RMSE(y, pred)
	if err != nil {
		return err
	}
	mae, err := metrics.MAE(y, pred)
	if err != nil {
		return err
	}
	r2, err := metrics.R2Score(y, pred)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "rmse\t%.6f\nmae\t%.6f\nr2\t%.6f\n", rmse, mae, r2)
	return nil
}
