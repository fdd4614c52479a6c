package report

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hoanghai1803/minernews/internal/models"
)

// ErrReportExists is returned when the target file name is already taken on
// disk. With a Namer in front of the Writer this indicates a logic error.
var ErrReportExists = errors.New("report file already exists")

// WriteError describes a failed report write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing report %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

const tempPattern = ".report-*.tmp"

// Writer persists analysis results as report files in a single directory.
// Each write is atomic: either the complete file appears under its final
// name or nothing does.
type Writer struct {
	dir   string
	namer *Namer
}

// NewWriter creates the report directory if needed and reserves the names
// of the files already in it.
func NewWriter(dir string, slugMaxLen int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory %q: %w", dir, err)
	}

	namer, err := NewNamerForDir(dir, slugMaxLen)
	if err != nil {
		return nil, err
	}

	return &Writer{dir: dir, namer: namer}, nil
}

// Dir returns the report directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write renders result and stores it under a freshly reserved name,
// returning the path of the new file.
func (w *Writer) Write(result *models.AnalysisResult) (string, error) {
	name := w.namer.Reserve(result.GeneratedAt, result.Article.Title)
	path := filepath.Join(w.dir, name)

	data, err := Render(result)
	if err != nil {
		w.namer.Release(name)
		return "", &WriteError{Path: path, Err: err}
	}

	if err := writeNew(w.dir, path, data); err != nil {
		if !errors.Is(err, ErrReportExists) {
			w.namer.Release(name)
		}
		return "", &WriteError{Path: path, Err: err}
	}

	slog.Debug("report written", "path", path, "bytes", len(data))
	return path, nil
}

// writeNew writes data to a temp file in dir and links it to path. The link
// fails if path exists, so an existing report is never replaced.
func writeNew(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already gone after a rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	err = os.Link(tmpName, path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return ErrReportExists
	}

	// Some filesystems do not support hard links. Fall back to a rename
	// after checking that the target is free.
	if _, statErr := os.Lstat(path); statErr == nil {
		return ErrReportExists
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("moving report into place: %w", err)
	}
	return nil
}

// ReadFile parses the report stored at path.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %q: %w", path, err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing report %q: %w", path, err)
	}
	r.Path = path
	r.Name = filepath.Base(path)
	return r, nil
}

// ScanDir parses every report in dir, sorted by file name (oldest first).
// Files that are not reports are skipped. A missing directory yields no
// reports and no error.
func ScanDir(dir string) ([]*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing report directory %q: %w", dir, err)
	}

	var reports []*Report
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}

		r, err := ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Debug("skipping non-report file", "file", e.Name(), "error", err)
			continue
		}
		reports = append(reports, r)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Name < reports[j].Name
	})
	return reports, nil
}
