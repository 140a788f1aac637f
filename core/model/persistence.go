package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する。
// 一時ファイルに書き込んでからリネームするため、途中で失敗しても既存ファイルは壊れない。
//
//	err := model.SaveModel(bundle, filepath.Join(runDir, "model.gob"))
func SaveModel(m interface{}, filename string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create file for %s", filename)
	}
	tmpName := tmp.Name()

	if err := SaveModelToWriter(m, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close model file")
	}
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to move model file into place")
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む。ファイルが無ければFileNotFoundErrorを返す。
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewFileNotFoundError(filename, err)
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
