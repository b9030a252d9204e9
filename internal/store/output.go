// Package store manages the writable directory visualization artifacts
// are saved to and served from.
package store

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"moldetect-service/internal/domain"
)

// Store writes and resolves artifacts under a single output directory.
type Store struct {
	dir string
}

// New creates the output directory when missing and verifies it is
// writable. A directory that cannot be prepared is a startup failure,
// not a per-request one.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.dir }

// SavePNG encodes img as PNG under a name derived from the uploaded
// file, and returns the path relative to the working directory.
func (s *Store) SavePNG(img image.Image, baseName string) (string, error) {
	base := sanitizeBase(baseName)
	name := fmt.Sprintf("visualization_%s_%s.png", base, shortID())
	path := filepath.Join(s.dir, name)

	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("save visualization: %w", err)
	}
	return path, nil
}

// Resolve maps an artifact file name to its on-disk path. Names with
// path separators or traversal elements are rejected; missing files
// report domain.ErrVisualizationNotFound.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", domain.ErrInvalidArtifactName
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", domain.ErrVisualizationNotFound
	}
	return path, nil
}

// sanitizeBase strips the extension and any character that should not
// land in a generated file name.
func sanitizeBase(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "image"
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func shortID() string {
	return uuid.New().String()[:8]
}
