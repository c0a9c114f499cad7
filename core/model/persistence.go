package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// インターフェース型のフィールド（ベース学習器など）を含むモデルは、
// 具象型を事前に gob.Register しておく必要がある。各学習器パッケージは
// init で自身を登録する。
//
//	booster, _ := ensemble.NewBooster(linear_model.RidgeFactory(1.0))
//	// ... 学習 ...
//	err := model.SaveModel(booster, "model.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	return SaveModelToWriter(model, file)
}

// LoadModel はファイルからモデルを読み込む
//
//	var booster ensemble.Booster
//	err := model.LoadModel(&booster, "model.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
