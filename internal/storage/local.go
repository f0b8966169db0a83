package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stwalsh4118/tokkosync/internal/logger"
)

const (
	dirPermissions  = 0o700
	filePermissions = 0o600
)

// Local stores objects as files below a root directory. The server
// exposes the root under the public URL prefix.
type Local struct {
	root      string
	publicURL string
	log       *logger.Logger
}

// NewLocal creates the root directory if needed.
func NewLocal(root, publicURL string, log *logger.Logger) (*Local, error) {
	if root == "" {
		return nil, errors.New("local storage: root directory is required")
	}
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return nil, fmt.Errorf("local storage: failed to create root %s: %w", root, err)
	}
	return &Local{
		root:      root,
		publicURL: publicURL,
		log:       log.WithComponent("storage_local"),
	}, nil
}

// Root returns the directory objects are written under.
func (l *Local) Root() string {
	return l.root
}

// Put writes to a temporary file first so a failed copy never leaves a
// truncated object behind.
func (l *Local) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(l.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return fmt.Errorf("local storage: failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("local storage: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("local storage: failed to write %s: %w", cleaned, err)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("local storage: failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("local storage: failed to close %s: %w", cleaned, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("local storage: failed to move %s into place: %w", cleaned, err)
	}

	l.log.Debug("Object stored", map[string]interface{}{
		"name":         cleaned,
		"content_type": contentType,
	})
	return nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err = os.Remove(filepath.Join(l.root, filepath.FromSlash(cleaned)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local storage: failed to delete %s: %w", cleaned, err)
	}
	return nil
}

func (l *Local) URL(name string) string {
	return joinURL(l.publicURL, name)
}
