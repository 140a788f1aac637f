package engine

import (
	"time"

	"github.com/YuminosukeSato/tabautoml/core/model"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/pkg/log"
)

// bundleFormat は保存形式のバージョン
const bundleFormat = 1

type bundle struct {
	Format  int
	SavedAt time.Time
	Model   *Model
}

// SaveModel writes m, pipeline included, to path with encoding/gob. The file
// is replaced atomically.
func (g *Gonum) SaveModel(m *Model, path string) error {
	if err := m.check(StageSave); err != nil {
		return err
	}
	_, done := g.stageLogger(StageSave)
	b := &bundle{Format: bundleFormat, SavedAt: time.Now().UTC(), Model: m}
	if err := model.SaveModel(b, path); err != nil {
		return err
	}
	done(log.ModelIDKey, m.ID, log.PathKey, path)
	return nil
}

// LoadModel reads a model written by SaveModel. The model must belong to the
// task of the module.
func (g *Gonum) LoadModel(path string) (*Model, error) {
	_, done := g.stageLogger(StageLoad)
	var b bundle
	if err := model.LoadModel(&b, path); err != nil {
		return nil, err
	}
	if b.Format != bundleFormat {
		return nil, errors.NewValueError("LoadModel", "unsupported model file format")
	}
	if err := b.Model.check(StageLoad); err != nil {
		return nil, err
	}
	if b.Model.Task != g.task {
		return nil, errors.NewValueError("LoadModel",
			"model task "+b.Model.Task.String()+" does not match module task "+g.task.String())
	}
	done(log.ModelIDKey, b.Model.ID, log.PathKey, path)
	return b.Model, nil
}
