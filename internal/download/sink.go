// Package download stores files produced by export effects.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/choirsync/internal/filex"
)

var ErrEmptyName = errors.New("download: empty file name")

// Sink persists a downloaded file and returns where it ended up.
type Sink interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// DirSink writes files into a local directory. An existing file is never
// overwritten; a numeric suffix is added instead ("report (1).pdf").
type DirSink struct {
	Dir string
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

func (s *DirSink) Save(ctx context.Context, name, _ string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := filex.EnsureDir(s.Dir)
	if err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	f, err := filex.CreateUnique(dir, name)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
