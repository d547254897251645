// Package ingest keeps uploaded logger files under an explicit storage root.
//
//	<root>/data/<sn>/log_files/<name>.log   stored uploads
//	<root>/graphs/<sn>/                     chart artifacts
//	<root>/results/<sn>/<timestamp>/        snapshots (see package store)
package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

const (
	dataDir    = "data"
	logDir     = "log_files"
	graphsDir  = "graphs"
	resultsDir = "results"
)

var (
	ErrSetup       = errors.New("failed to create storage directories")
	ErrStoreFailed = errors.New("failed to store upload")
	ErrListFailed  = errors.New("failed to list stored files")
	ErrBadArchive  = errors.New("failed to read zip archive")
)

// Layout resolves every storage path from Root. It never changes the process
// working directory.
type Layout struct {
	Fs     afero.Fs
	Root   string
	logger *zap.Logger
}

// NewLayout creates a Layout rooted at root on fs.
func NewLayout(fs afero.Fs, root string, logger *zap.Logger) *Layout {
	return &Layout{Fs: fs, Root: root, logger: logger}
}

// Setup creates the top-level directories. Callers treat failure as fatal.
func (l *Layout) Setup() error {
	for _, dir := range []string{dataDir, graphsDir, resultsDir} {
		if err := l.Fs.MkdirAll(filepath.Join(l.Root, dir), 0o755); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSetup, dir, err)
		}
	}
	return nil
}

// LogDir and GraphDir expect an SN accepted by telemetry.ValidSN.
func (l *Layout) LogDir(sn string) string   { return filepath.Join(l.Root, dataDir, sn, logDir) }
func (l *Layout) GraphDir(sn string) string { return filepath.Join(l.Root, graphsDir, sn) }

// Stored describes one log file accepted from an upload.
type Stored struct {
	SN        string
	Name      string
	Path      string
	Duplicate bool // already present from an earlier upload, not written again
}

// Rejected is an upload entry that was not stored, with the reason.
type Rejected struct {
	Name string
	Err  error
}

// StoreUpload stores a .log upload, or every .log member of a .zip upload.
func (l *Layout) StoreUpload(name string, data []byte) ([]Stored, []Rejected) {
	switch strings.ToLower(filepath.Ext(name)) {
	case telemetry.LogExt:
		st, err := l.storeLog(name, bytes.NewReader(data))
		if err != nil {
			return nil, []Rejected{{Name: name, Err: err}}
		}
		return []Stored{st}, nil
	case telemetry.ZipExt:
		return l.storeZip(name, data)
	default:
		return nil, []Rejected{{Name: name, Err: fmt.Errorf("%w: %s", telemetry.ErrUnsupportedInput, name)}}
	}
}

func (l *Layout) storeZip(name string, data []byte) ([]Stored, []Rejected) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, []Rejected{{Name: name, Err: fmt.Errorf("%w: %s: %w", ErrBadArchive, name, err)}}
	}
	var (
		stored   []Stored
		rejected []Rejected
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !telemetry.IsLog(f.Name) {
			continue
		}
		st, err := l.storeZipMember(f)
		if err != nil {
			rejected = append(rejected, Rejected{Name: f.Name, Err: err})
			continue
		}
		stored = append(stored, st)
	}
	l.logger.Debug("Zip upload unpacked",
		zap.String("archive", name),
		zap.Int("stored", len(stored)),
		zap.Int("rejected", len(rejected)),
	)
	return stored, rejected
}

func (l *Layout) storeZipMember(f *zip.File) (Stored, error) {
	rc, err := f.Open()
	if err != nil {
		return Stored{}, fmt.Errorf("%w: %s: %w", ErrBadArchive, f.Name, err)
	}
	defer rc.Close()
	return l.storeLog(path.Base(f.Name), rc)
}

func (l *Layout) storeLog(name string, r io.Reader) (Stored, error) {
	fn, err := telemetry.ParseFileName(name)
	if err != nil {
		return Stored{}, err
	}
	st := Stored{SN: fn.SN, Name: fn.Base, Path: filepath.Join(l.LogDir(fn.SN), fn.Base)}

	exists, err := afero.Exists(l.Fs, st.Path)
	if err != nil {
		return Stored{}, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	if exists {
		st.Duplicate = true
		l.logger.Info("Log file already stored, skipping", zap.String("sn", fn.SN), zap.String("file", fn.Base))
		return st, nil
	}

	if err := l.Fs.MkdirAll(l.LogDir(fn.SN), 0o755); err != nil {
		return Stored{}, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	if err := afero.WriteReader(l.Fs, st.Path, r); err != nil {
		return Stored{}, fmt.Errorf("%w: %s: %w", ErrStoreFailed, fn.Base, err)
	}
	l.logger.Debug("Log file stored", zap.String("sn", fn.SN), zap.String("path", st.Path))
	return st, nil
}

// Files lists the stored logs of sn whose recording day lies in [start, end].
// Zero bounds are open.
func (l *Layout) Files(sn string, start, end time.Time) ([]string, error) {
	if err := telemetry.ValidSN(sn); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	infos, err := afero.ReadDir(l.Fs, l.LogDir(sn))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrListFailed, sn, err)
	}
	var paths []string
	for _, fi := range infos {
		if fi.IsDir() || !telemetry.IsLog(fi.Name()) {
			continue
		}
		fn, err := telemetry.ParseFileName(fi.Name())
		if err != nil || !fn.InDateRange(start, end) {
			continue
		}
		paths = append(paths, filepath.Join(l.LogDir(sn), fi.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// SNs lists every equipment identifier with stored data.
func (l *Layout) SNs() ([]string, error) {
	infos, err := afero.ReadDir(l.Fs, filepath.Join(l.Root, dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	var sns []string
	for _, fi := range infos {
		if fi.IsDir() {
			sns = append(sns, fi.Name())
		}
	}
	return sns, nil
}

// Open opens a stored file for reading.
func (l *Layout) Open(p string) (afero.File, error) {
	return l.Fs.Open(p)
}
