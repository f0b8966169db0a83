package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/metrics"
	"github.com/stwalsh4118/tokkosync/internal/models"
	"github.com/stwalsh4118/tokkosync/internal/repository"
	"github.com/stwalsh4118/tokkosync/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Photo migration outcomes, also used as metric labels.
const (
	outcomeMigrated = "migrated"
	outcomeFailed   = "failed"
	outcomeSkipped  = "skipped"
	outcomeAborted  = "aborted"
)

const defaultExtension = "jpg"

var extensionsByType = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/avif": "avif",
	"image/heic": "heic",
}

var errPhotoTooLarge = errors.New("photo exceeds size limit")

// PhotoConfig tunes the migration batcher.
type PhotoConfig struct {
	BatchSize       int
	Concurrency     int
	MaxBytes        int64
	Timeout         time.Duration
	DownloadTimeout time.Duration
}

// DefaultPhotoConfig returns the production defaults.
func DefaultPhotoConfig() PhotoConfig {
	return PhotoConfig{
		BatchSize:       20,
		Concurrency:     4,
		MaxBytes:        20 << 20,
		Timeout:         5 * time.Minute,
		DownloadTimeout: 30 * time.Second,
	}
}

// MigrationScope selects the photos to migrate: those of one user, or all.
type MigrationScope struct {
	UserID string
	All    bool
}

// MigrationResult counts the photos handled by one run.
type MigrationResult struct {
	Migrated int `json:"migrated"`
	Failed   int `json:"failed"`
}

// PhotoMigrationService copies externally hosted photos into owned storage.
type PhotoMigrationService interface {
	// MigratePhotos migrates every unmigrated photo in scope. A photo that
	// fails stays unmigrated and is counted in Failed. Returns
	// ErrInvalidScope when scope selects nothing and ErrUserNotFound for an
	// unknown user.
	MigratePhotos(ctx context.Context, scope MigrationScope) (MigrationResult, error)
}

type photoMigrationService struct {
	photos repository.PhotoRepository
	users  repository.UserRepository
	store  storage.ObjectStore
	http   *http.Client
	cfg    PhotoConfig
	log    *logger.Logger
	suffix func() string
}

// NewPhotoMigrationService creates a new instance of PhotoMigrationService.
func NewPhotoMigrationService(
	photos repository.PhotoRepository,
	users repository.UserRepository,
	store storage.ObjectStore,
	httpClient *http.Client,
	cfg PhotoConfig,
	log *logger.Logger,
) PhotoMigrationService {
	def := DefaultPhotoConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = def.DownloadTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &photoMigrationService{
		photos: photos,
		users:  users,
		store:  store,
		http:   httpClient,
		cfg:    cfg,
		log:    log.WithComponent("photo_migration"),
		suffix: func() string { return uuid.NewString()[:8] },
	}
}

func (s *photoMigrationService) MigratePhotos(ctx context.Context, scope MigrationScope) (MigrationResult, error) {
	var result MigrationResult

	if scope.UserID == "" && !scope.All {
		return result, ErrInvalidScope
	}
	if scope.UserID != "" {
		user, err := s.users.FindByID(ctx, scope.UserID)
		if err != nil {
			return result, fmt.Errorf("failed to look up user: %w", err)
		}
		if user == nil {
			return result, fmt.Errorf("%w: %s", ErrUserNotFound, scope.UserID)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	var afterID int64
	for {
		batch, err := s.photos.ListUnmigrated(ctx, repository.PhotoScope{UserID: scope.UserID}, afterID, s.cfg.BatchSize)
		if err != nil {
			return result, fmt.Errorf("failed to list unmigrated photos: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		migrated, failed := s.migrateBatch(ctx, batch)
		result.Migrated += migrated
		result.Failed += failed

		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("photo migration stopped: %w", err)
		}
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}

	s.log.Info("Photo migration finished", map[string]interface{}{
		"user_id":     scope.UserID,
		"migrated":    result.Migrated,
		"failed":      result.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (s *photoMigrationService) migrateBatch(ctx context.Context, batch []models.Photo) (int, int) {
	var (
		mu       sync.Mutex
		migrated int
		failed   int
		g        errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, photo := range batch {
		g.Go(func() error {
			outcome, err := s.migrateOne(ctx, photo)
			if outcome == outcomeFailed && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				// The run ran out of time; the photo itself did not fail
				outcome = outcomeAborted
			}
			metrics.PhotoMigrationsTotal.WithLabelValues(outcome).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeMigrated:
				migrated++
			case outcomeFailed:
				failed++
				s.log.Warn("Photo migration failed", map[string]interface{}{
					"photo_id":    photo.ID,
					"property_id": photo.PropertyID,
					"error":       err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	return migrated, failed
}

// migrateOne downloads, uploads and marks one photo. The row only changes
// after the upload succeeded, so any failure leaves it retryable.
func (s *photoMigrationService) migrateOne(ctx context.Context, photo models.Photo) (string, error) {
	if err := ctx.Err(); err != nil {
		return outcomeAborted, err
	}

	source := firstURL(photo.Original, photo.Image, photo.Thumb)
	if source == "" {
		return outcomeFailed, errors.New("photo has no source url")
	}

	data, contentType, err := s.download(ctx, source)
	if err != nil {
		return outcomeFailed, err
	}

	name := fmt.Sprintf("%d/%d-%s.%s", photo.PropertyID, photo.Order, s.suffix(), extensionFor(contentType, source))
	if err := s.store.Put(ctx, name, contentType, bytes.NewReader(data)); err != nil {
		return outcomeFailed, fmt.Errorf("upload: %w", err)
	}

	marked, err := s.photos.MarkMigrated(ctx, photo.ID, name, s.store.URL(name))
	if err != nil {
		s.discard(ctx, name)
		return outcomeFailed, fmt.Errorf("mark migrated: %w", err)
	}
	if !marked {
		// Another run got there first
		s.discard(ctx, name)
		return outcomeSkipped, nil
	}

	return outcomeMigrated, nil
}

func (s *photoMigrationService) download(ctx context.Context, source string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > s.cfg.MaxBytes {
		return nil, "", fmt.Errorf("download: %w (%d bytes)", errPhotoTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, "", fmt.Errorf("download: %w", errPhotoTooLarge)
	}
	if len(data) == 0 {
		return nil, "", errors.New("download: empty body")
	}
	metrics.PhotoDownloadBytes.Observe(float64(len(data)))

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (s *photoMigrationService) discard(ctx context.Context, name string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), name); err != nil {
		s.log.Warn("Failed to delete orphaned upload", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
	}
}

// extensionFor picks the object extension from the content type, then the
// source URL path.
func extensionFor(contentType, source string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := extensionsByType[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}

	if u, err := url.Parse(source); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if ext == "jpeg" {
			return "jpg"
		}
		if ext != "" && len(ext) <= 5 && isAlnum(ext) {
			return ext
		}
	}
	return defaultExtension
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func firstURL(values ...*string) string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}
