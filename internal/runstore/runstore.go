// Package runstore persists experiment runs. Each run lives in its own
// directory under the runs dir:
//
//	<runs_dir>/<id>/run.json
//	<runs_dir>/<id>/model.gob
//	<runs_dir>/<id>/predictions.csv
//	<runs_dir>/<id>/<plot>.<format>
package runstore

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/tabautoml/automl"
	"github.com/YuminosukeSato/tabautoml/dataset"
	"github.com/YuminosukeSato/tabautoml/engine"
	"github.com/YuminosukeSato/tabautoml/pkg/errors"
	"github.com/YuminosukeSato/tabautoml/task"
)

const (
	RecordFileName      = "run.json"
	ModelFileName       = "model.gob"
	PredictionsFileName = "predictions.csv"
)

// Run status values.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Table is a frame rendered for JSON.
type Table struct {
	IndexName string     `json:"index_name,omitempty"`
	Index     []string   `json:"index,omitempty"`
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
}

// NewTable copies f; nil stays nil.
func NewTable(f *dataset.Frame) *Table {
	if f == nil {
		return nil
	}
	c := f.Clone()
	return &Table{IndexName: c.IndexName, Index: c.Index, Columns: c.Columns, Rows: c.Rows}
}

// Frame converts the table back to a frame.
func (t *Table) Frame() *dataset.Frame {
	return &dataset.Frame{Columns: t.Columns, Rows: t.Rows, Index: t.Index, IndexName: t.IndexName}
}

// ModelSummary is the JSON view of a trained model.
type ModelSummary struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Scores     map[string]float64     `json:"scores,omitempty"`
	FitTimeSec float64                `json:"fit_time_sec"`
	Finalized  bool                   `json:"finalized"`
}

// Summarize builds the summary of m. NaN scores are left out since JSON
// cannot carry them.
func Summarize(m *engine.Model) *ModelSummary {
	if m == nil {
		return nil
	}
	s := &ModelSummary{
		ID:         m.ID,
		Name:       m.Name,
		Params:     m.Params,
		FitTimeSec: m.FitTime.Seconds(),
		Finalized:  m.Finalized,
	}
	for k, v := range m.Scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if s.Scores == nil {
			s.Scores = make(map[string]float64, len(m.Scores))
		}
		s.Scores[k] = v
	}
	return s
}

// Record is the content of run.json.
type Record struct {
	ID         string    `json:"id"`
	Experiment string    `json:"experiment,omitempty"`
	Data       string    `json:"data"`
	Target     string    `json:"target"`
	Task       task.Task `json:"task"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`

	Sampled    bool    `json:"sampled"`
	SampleFrac float64 `json:"sample_frac,omitempty"`
	Rows       int     `json:"rows"`

	Setup       *engine.SetupInfo `json:"setup,omitempty"`
	Leaderboard *Table            `json:"leaderboard,omitempty"`
	Model       *ModelSummary     `json:"model,omitempty"`
	Scores      *Table            `json:"holdout_scores,omitempty"`

	// artifacts は run ディレクトリからの相対パス
	ModelFile       string `json:"model_file,omitempty"`
	PredictionsFile string `json:"predictions_file,omitempty"`
	PlotFile        string `json:"plot_file,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	dir string
}

// Dir returns the run directory.
func (r *Record) Dir() string { return r.dir }

// Path returns name inside the run directory.
func (r *Record) Path(name string) string { return filepath.Join(r.dir, name) }

// Complete copies the outcome of an experiment into the record.
func (r *Record) Complete(res *automl.Result) {
	now := time.Now().UTC()
	r.Status = StatusFinished
	r.FinishedAt = &now
	r.Task = res.Task
	r.Sampled = res.Sampled
	r.SampleFrac = res.SampleFrac
	r.Rows = res.Rows
	r.Setup = res.Setup
	r.Leaderboard = NewTable(res.Leaderboard)
	r.Model = Summarize(res.Model)
	r.Scores = NewTable(res.Scores)
	if res.PlotPath != "" {
		if rel, err := filepath.Rel(r.dir, res.PlotPath); err == nil && !strings.HasPrefix(rel, "..") {
			r.PlotFile = rel
		} else {
			r.PlotFile = res.PlotPath
		}
	}
}

// Fail marks the record as failed with err.
func (r *Record) Fail(err error) {
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.FinishedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
}

// Store is a directory of runs.
type Store struct {
	root string
}

// Open returns the store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.NewValidationError("runs_dir", "must not be empty", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create runs dir")
	}
	return &Store{root: dir}, nil
}

// Root returns the runs directory.
func (s *Store) Root() string { return s.root }

// Create allocates a new run with a fresh id and writes its initial record.
func (s *Store) Create(rec Record) (*Record, error) {
	r := rec
	r.ID = uuid.NewString()
	r.Status = StatusRunning
	r.CreatedAt = time.Now().UTC()
	r.FinishedAt = nil
	r.dir = filepath.Join(s.root, r.ID)
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create run dir")
	}
	if err := s.Save(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save writes run.json atomically.
func (s *Store) Save(r *Record) error {
	if r.dir == "" {
		r.dir = filepath.Join(s.root, r.ID)
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal run record")
	}
	return writeFileAtomic(r.Path(RecordFileName), b)
}

// Get loads a run by id. A unique id prefix is accepted.
func (s *Store) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.NewValidationError("id", "must not be empty", id)
	}
	if r, err := s.load(id); err == nil {
		return r, nil
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(err, "read runs dir")
	}
	var match string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), id) {
			continue
		}
		if match != "" {
			return nil, errors.NewValidationError("id", "prefix matches more than one run", id)
		}
		match = e.Name()
	}
	if match == "" {
		return nil, errors.NewFileNotFoundError(filepath.Join(s.root, id, RecordFileName), os.ErrNotExist)
	}
	return s.load(match)
}

func (s *Store) load(id string) (*Record, error) {
	path := filepath.Join(s.root, id, RecordFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileNotFoundError(path, err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	r.dir = filepath.Join(s.root, id)
	return &r, nil
}

// List returns all readable runs, newest first. Directories without a
// run.json are skipped.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(err, "read runs dir")
	}
	var out []*Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := s.load(e.Name())
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// WritePredictions writes f as predictions.csv into the run directory.
func (s *Store) WritePredictions(r *Record, f *dataset.Frame) error {
	tmp, err := os.CreateTemp(r.dir, PredictionsFileName+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create predictions file")
	}
	defer os.Remove(tmp.Name())
	if err := f.WriteCSV(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close predictions file")
	}
	if err := os.Rename(tmp.Name(), r.Path(PredictionsFileName)); err != nil {
		return errors.Wrap(err, "rename predictions file")
	}
	r.PredictionsFile = PredictionsFileName
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "atomic rename")
	}
	return nil
}
