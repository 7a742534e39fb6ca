package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrDocumentNotFound is returned by loaders for unknown documents.
var ErrDocumentNotFound = errors.New("document not found")

// Loader yields the raw bytes of a document by filename.
type Loader interface {
	Load(ctx context.Context, filename string) ([]byte, error)
}

// DirLoader reads documents from a directory. Filenames may not escape it.
type DirLoader struct {
	Root     string
	MaxBytes int64 // 0 means unlimited
}

func (l DirLoader) Load(ctx context.Context, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.Clean(filepath.FromSlash(filename))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: path escapes data directory", filename)
	}

	f, err := os.Open(filepath.Join(l.Root, rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, filename)
		}
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if l.MaxBytes > 0 {
		r = io.LimitReader(f, l.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", filename, l.MaxBytes)
	}
	return data, nil
}

// MemLoader serves documents held in memory, such as uploaded files.
type MemLoader map[string][]byte

func (m MemLoader) Load(ctx context.Context, filename string) ([]byte, error) {
	data, ok := m[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, filename)
	}
	return data, nil
}
