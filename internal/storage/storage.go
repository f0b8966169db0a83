// Package storage holds the owned object storage backends photos are
// migrated into.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/stwalsh4118/tokkosync/internal/config"
	"github.com/stwalsh4118/tokkosync/internal/logger"
)

// ErrInvalidName is returned for object names that are empty, absolute or
// escape the store root.
var ErrInvalidName = errors.New("invalid object name")

// ObjectStore is a flat namespace of publicly readable objects.
type ObjectStore interface {
	// Put stores r under name, replacing any existing object.
	Put(ctx context.Context, name, contentType string, r io.Reader) error

	// Delete removes name. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error

	// URL returns the public URL name is served from.
	URL(name string) string
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageDriverGCS:
		return NewGCS(ctx, GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentials,
			PublicURL:       cfg.PublicURL,
		}, log)
	case config.StorageDriverLocal, "":
		return NewLocal(cfg.LocalDir, cfg.PublicURL, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// cleanName normalizes an object name to a relative slash path.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return cleaned, nil
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}
