package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

// ReaderFunc parses one tabular source into a Frame.
type ReaderFunc func(r io.Reader) (*Frame, error)

var (
	readersMu sync.RWMutex
	readers   = map[string]ReaderFunc{
		".csv": CSVReader(','),
	}
)

// Register adds or replaces the reader for a file extension such as ".tsv".
func Register(ext string, fn ReaderFunc) {
	readersMu.Lock()
	defer readersMu.Unlock()
	readers[normalizeExt(ext)] = fn
}

// Extensions returns the registered extensions in sorted order.
func Extensions() []string {
	readersMu.RLock()
	defer readersMu.RUnlock()
	exts := make([]string, 0, len(readers))
	for ext := range readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func lookupReader(name string) (ReaderFunc, error) {
	ext := normalizeExt(filepath.Ext(name))
	readersMu.RLock()
	fn, ok := readers[ext]
	readersMu.RUnlock()
	if !ok || ext == "" {
		return nil, errors.NewUnsupportedFileFormatError(name, ext, Extensions())
	}
	return fn, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

type loadOptions struct {
	indexCol string
	name     string
}

// Option configures Load and LoadReader.
type Option func(*loadOptions)

// WithIndexColumn sets a column to become the row index.
func WithIndexColumn(col string) Option {
	return func(o *loadOptions) { o.indexCol = col }
}

// WithName sets the source name used to resolve the reader for LoadReader.
func WithName(name string) Option {
	return func(o *loadOptions) { o.name = name }
}

// Load reads the file at path. The extension is resolved before the file is
// opened, so an unsupported format is reported even for a missing file.
func Load(path string, opts ...Option) (*Frame, error) {
	o := applyOptions(opts)
	read, err := lookupReader(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewFileNotFoundError(path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.NewFileNotFoundError(path, err)
	}
	if info.IsDir() {
		return nil, errors.NewFileNotFoundError(path, errors.New("is a directory"))
	}

	frame, err := read(file)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	frame.Name = filepath.Base(path)
	return finish(frame, o)
}

// LoadReader reads an already open source. The extension comes from WithName
// or, when r has a Name method (as *os.File does), from that name.
// The caller owns r and must close it.
func LoadReader(r io.Reader, opts ...Option) (*Frame, error) {
	o := applyOptions(opts)
	name := o.name
	if name == "" {
		if named, ok := r.(interface{ Name() string }); ok {
			name = named.Name()
		}
	}
	if r == nil {
		return nil, errors.NewFileNotFoundError(name, errors.New("nil reader"))
	}
	read, err := lookupReader(name)
	if err != nil {
		return nil, err
	}

	frame, err := read(r)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	frame.Name = filepath.Base(name)
	return finish(frame, o)
}

func applyOptions(opts []Option) loadOptions {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func finish(frame *Frame, o loadOptions) (*Frame, error) {
	if o.indexCol == "" {
		return frame, nil
	}
	return SetIndex(frame, o.indexCol)
}

// SetIndex moves column col out of Columns and into Index.
func SetIndex(f *Frame, col string) (*Frame, error) {
	j := f.ColumnIndex(col)
	if j < 0 {
		return nil, errors.NewColumnNotFoundError(col, "index")
	}
	index, err := f.Column(col)
	if err != nil {
		return nil, err
	}
	out, err := f.Drop(col)
	if err != nil {
		return nil, err
	}
	out.Index = index
	out.IndexName = col
	return out, nil
}

// CSVReader returns a reader for delimited text with a header row.
func CSVReader(comma rune) ReaderFunc {
	return func(r io.Reader) (*Frame, error) {
		cr := csv.NewReader(r)
		cr.Comma = comma
		cr.TrimLeadingSpace = true

		header, err := cr.Read()
		if err == io.EOF {
			return nil, errors.Wrap(errors.ErrEmptyData, "missing header row")
		}
		if err != nil {
			return nil, errors.Wrap(err, "read header")
		}
		if len(header) > 0 {
			header[0] = strings.TrimPrefix(header[0], "\ufeff")
		}

		var rows [][]string
		for {
			rec, err := cr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, errors.Wrap(err, "read row")
			}
			rows = append(rows, rec)
		}
		return &Frame{Columns: header, Rows: rows}, nil
	}
}
