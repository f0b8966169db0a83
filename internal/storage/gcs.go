package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/stwalsh4118/tokkosync/internal/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	// PublicURL overrides the default https://storage.googleapis.com/{bucket}
	// prefix, for buckets fronted by a CDN.
	PublicURL string
	// ClientOptions are appended after the credentials option.
	ClientOptions []option.ClientOption
}

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	svc       *gcs.Service
	bucket    string
	publicURL string
	log       *logger.Logger
}

// NewGCS creates a client for cfg.Bucket.
func NewGCS(ctx context.Context, cfg GCSConfig, log *logger.Logger) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs storage: bucket name is required")
	}

	opts := make([]option.ClientOption, 0, len(cfg.ClientOptions)+1)
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, cfg.ClientOptions...)

	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: failed to create client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = gcsPublicHost + "/" + cfg.Bucket
	}

	return &GCS{
		svc:       svc,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		log:       log.WithComponent("storage_gcs"),
	}, nil
}

// Put uploads r in a single request.
func (g *GCS) Put(ctx context.Context, name, contentType string, r io.Reader) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return err
	}

	obj := &gcs.Object{Name: cleaned, ContentType: contentType}
	_, err = g.svc.Objects.Insert(g.bucket, obj).
		Media(r, googleapi.ContentType(contentType), googleapi.ChunkSize(0)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gcs storage: failed to upload %s: %w", cleaned, err)
	}

	g.log.Debug("Object uploaded", map[string]interface{}{
		"bucket": g.bucket,
		"name":   cleaned,
	})
	return nil
}

func (g *GCS) Delete(ctx context.Context, name string) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return err
	}

	err = g.svc.Objects.Delete(g.bucket, cleaned).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("gcs storage: failed to delete %s: %w", cleaned, err)
	}
	return nil
}

func (g *GCS) URL(name string) string {
	return joinURL(g.publicURL, name)
}
