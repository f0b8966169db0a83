package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/tokkosync/internal/credential"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/metrics"
	"github.com/stwalsh4118/tokkosync/internal/models"
	"github.com/stwalsh4118/tokkosync/internal/repository"
	"github.com/stwalsh4118/tokkosync/internal/tokko"
	"github.com/stwalsh4118/tokkosync/internal/worker"
)

// FeedFactory opens the provider feed for one credential.
type FeedFactory interface {
	WithKey(apiKey string) tokko.Feed
}

// TaskRunner accepts background work.
type TaskRunner interface {
	Submit(task worker.Task) error
}

// SyncConfig bounds a sync run.
type SyncConfig struct {
	DefaultLimit int
	MaxLimit     int
	PageSize     int
	Timeout      time.Duration
	LockTTL      time.Duration
}

// DefaultSyncConfig returns the production defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		DefaultLimit: tokko.DefaultLimit,
		MaxLimit:     tokko.MaxLimit,
		PageSize:     20,
		Timeout:      5 * time.Minute,
		LockTTL:      10 * time.Minute,
	}
}

// SyncRequest starts a sync for one provider credential.
type SyncRequest struct {
	// Limit caps the number of properties fetched. Nil uses the default.
	Limit      *int
	Credential string
	// UserID optionally attaches the credential to an existing user the
	// first time it is seen.
	UserID string
}

// SyncResult summarizes a run. It is returned even when the run fails so
// partial counts are never lost.
type SyncResult struct {
	UserID           string   `json:"userId"`
	Errors           []string `json:"errors"`
	PropertiesSynced int      `json:"propertiesSynced"`
	BranchesSynced   int      `json:"branchesSynced"`
	UsersSynced      int      `json:"usersSynced"`
	OwnersSynced     int      `json:"ownersSynced"`
	LocationsSynced  int      `json:"locationsSynced"`
}

// SyncStart is returned when a sync is queued in the background.
type SyncStart struct {
	UserID         string            `json:"userId"`
	CredentialHash string            `json:"credentialHash"`
	Status         models.SyncStatus `json:"status"`
}

// SyncStatusView is the status read model polled by clients.
type SyncStatusView struct {
	Message         *string           `json:"message"`
	PropertiesCount *int              `json:"propertiesCount"`
	Status          models.SyncStatus `json:"status"`
}

// SyncService defines the feed synchronization operations.
type SyncService interface {
	// SyncTokkoData imports the feed of credential into the store and
	// returns per-entity counts. Returns ErrInvalidCredential for short
	// credentials and ErrSyncInProgress when the user is already syncing.
	// On a fatal error the partial result is returned with the error and
	// the user's status is left at "error".
	SyncTokkoData(ctx context.Context, req SyncRequest) (*SyncResult, error)

	// StartSync resolves the user and takes the sync lock inline, then
	// runs the import on the background runner. Returns ErrQueueFull when
	// the runner cannot accept it.
	StartSync(ctx context.Context, req SyncRequest) (*SyncStart, error)

	// CheckExistingUser reports the user holding credential, if any.
	CheckExistingUser(ctx context.Context, credential string) (string, bool, error)

	// GetSyncStatus returns the status of the user holding hash, or idle
	// when no user holds it.
	GetSyncStatus(ctx context.Context, credentialHash string) (SyncStatusView, error)
}

type syncService struct {
	users    repository.UserRepository
	listings repository.ListingRepository
	feeds    FeedFactory
	sealer   *credential.Sealer
	runner   TaskRunner
	cfg      SyncConfig
	log      *logger.Logger
}

// NewSyncService creates a new instance of SyncService. runner may be nil
// when only synchronous syncs are used.
func NewSyncService(
	users repository.UserRepository,
	listings repository.ListingRepository,
	feeds FeedFactory,
	sealer *credential.Sealer,
	runner TaskRunner,
	cfg SyncConfig,
	log *logger.Logger,
) SyncService {
	def := DefaultSyncConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}

	return &syncService{
		users:    users,
		listings: listings,
		feeds:    feeds,
		sealer:   sealer,
		runner:   runner,
		cfg:      cfg,
		log:      log.WithComponent("sync"),
	}
}

// syncRun is a sync that has resolved its user and holds the lock.
type syncRun struct {
	user  *models.User
	token string
	hash  string
	key   string
	limit int
}

func (s *syncService) SyncTokkoData(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	run, err := s.prepare(ctx, req)
	if err != nil {
		result := &SyncResult{Errors: []string{}}
		if run != nil {
			result.UserID = run.user.ID
		}
		return result, err
	}

	if err := s.markStarted(ctx, run); err != nil {
		s.releaseLock(ctx, run)
		return &SyncResult{UserID: run.user.ID, Errors: []string{}}, err
	}

	return s.execute(ctx, run)
}

func (s *syncService) StartSync(ctx context.Context, req SyncRequest) (*SyncStart, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("%w: no background runner configured", ErrQueueFull)
	}

	run, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.markStarted(ctx, run); err != nil {
		s.releaseLock(ctx, run)
		return nil, err
	}

	err = s.runner.Submit(worker.Task{
		Name: "sync:" + credential.Prefix(run.hash),
		Run: func(taskCtx context.Context) error {
			_, err := s.execute(taskCtx, run)
			return err
		},
	})
	if err != nil {
		// Leave the user in a terminal state so pollers stop
		final := context.WithoutCancel(ctx)
		s.writeStatus(final, run.user.ID, repository.StatusUpdate{
			Status:  models.SyncStatusError,
			Message: "Sync could not be queued: " + err.Error(),
		})
		s.releaseLock(final, run)
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrStopped) {
			return nil, fmt.Errorf("%w: %w", ErrQueueFull, err)
		}
		return nil, fmt.Errorf("failed to queue sync: %w", err)
	}

	return &SyncStart{
		UserID:         run.user.ID,
		CredentialHash: run.hash,
		Status:         models.SyncStatusSyncing,
	}, nil
}

func (s *syncService) CheckExistingUser(ctx context.Context, cred string) (string, bool, error) {
	cred = strings.TrimSpace(cred)
	if cred == "" {
		return "", false, fmt.Errorf("%w: credential is required", ErrInvalidCredential)
	}

	user, err := s.users.FindByCredentialHash(ctx, credential.Hash(cred))
	if err != nil {
		return "", false, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", false, nil
	}
	return user.ID, true, nil
}

func (s *syncService) GetSyncStatus(ctx context.Context, hash string) (SyncStatusView, error) {
	user, err := s.users.FindByCredentialHash(ctx, strings.ToLower(strings.TrimSpace(hash)))
	if err != nil {
		return SyncStatusView{}, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return SyncStatusView{Status: models.SyncStatusIdle}, nil
	}

	status := user.SyncStatus
	if status == "" {
		status = models.SyncStatusIdle
	}
	return SyncStatusView{
		Status:          status,
		Message:         user.SyncMessage,
		PropertiesCount: user.SyncPropertiesCount,
	}, nil
}

// prepare validates the request, resolves the user and takes the lock. The
// returned run is non-nil whenever a user was resolved.
func (s *syncService) prepare(ctx context.Context, req SyncRequest) (*syncRun, error) {
	key := strings.TrimSpace(req.Credential)
	if len(key) < credential.MinLength {
		return nil, fmt.Errorf("%w: must be at least %d characters", ErrInvalidCredential, credential.MinLength)
	}

	hash := credential.Hash(key)
	user, err := s.resolveUser(ctx, key, hash, req.UserID)
	if err != nil {
		s.log.Error("Failed to resolve sync user", err, map[string]interface{}{
			"credential": credential.Prefix(hash),
		})
		return nil, err
	}

	run := &syncRun{
		user:  user,
		token: uuid.NewString(),
		hash:  hash,
		key:   key,
		limit: tokko.ClampLimitWith(req.Limit, s.cfg.DefaultLimit, s.cfg.MaxLimit),
	}

	acquired, err := s.users.AcquireSyncLock(ctx, user.ID, run.token, s.cfg.LockTTL)
	if err != nil {
		return run, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		s.log.Warn("Sync rejected, already running", map[string]interface{}{
			"user_id": user.ID,
		})
		return run, ErrSyncInProgress
	}

	return run, nil
}

func (s *syncService) resolveUser(ctx context.Context, key, hash, userID string) (*models.User, error) {
	user, err := s.users.FindByCredentialHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	sealed, err := s.sealer.Seal(key)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credential: %w", err)
	}

	if userID != "" {
		user, err = s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		if err := s.users.AttachCredential(ctx, user.ID, hash, sealed); err != nil {
			return nil, fmt.Errorf("failed to attach credential: %w", err)
		}
		user.TokkoAPIHash = &hash
		user.TokkoAPIKeyEncrypted = &sealed
		return user, nil
	}

	user = &models.User{
		TokkoAPIHash:         &hash,
		TokkoAPIKeyEncrypted: &sealed,
		SyncStatus:           models.SyncStatusIdle,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent first sync of the same credential
		existing, findErr := s.users.FindByCredentialHash(ctx, hash)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("Created user for new credential", map[string]interface{}{
		"user_id":    user.ID,
		"credential": credential.Prefix(hash),
	})
	return user, nil
}

func (s *syncService) markStarted(ctx context.Context, run *syncRun) error {
	err := s.users.UpdateSyncStatus(ctx, run.user.ID, repository.StatusUpdate{
		Status:  models.SyncStatusSyncing,
		Message: "Starting sync",
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// execute runs the import for a prepared run and always leaves the user
// in a terminal status with the lock released.
func (s *syncService) execute(parent context.Context, run *syncRun) (*SyncResult, error) {
	start := time.Now()
	final := context.WithoutCancel(parent)
	defer s.releaseLock(final, run)

	ctx, cancel := context.WithTimeout(parent, s.cfg.Timeout)
	defer cancel()

	log := s.log.With(map[string]interface{}{
		"user_id":    run.user.ID,
		"credential": credential.Prefix(run.hash),
	})
	log.Info("Sync started", map[string]interface{}{"limit": run.limit})

	rec := newReconciler(s, run, log)
	err := reconcileGuarded(ctx, rec)
	result := rec.result

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			err = fmt.Errorf("sync exceeded %s: %w", s.cfg.Timeout, err)
		}
		count := result.PropertiesSynced
		s.writeStatus(final, run.user.ID, repository.StatusUpdate{
			PropertiesCount: &count,
			Status:          models.SyncStatusError,
			Message:         err.Error(),
		})
		metrics.RecordSyncRun("error", time.Since(start))
		log.Error("Sync failed", err, map[string]interface{}{
			"properties":  result.PropertiesSynced,
			"item_errors": len(result.Errors),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return result, err
	}

	count := result.PropertiesSynced
	s.writeStatus(final, run.user.ID, repository.StatusUpdate{
		PropertiesCount: &count,
		Status:          models.SyncStatusDone,
		Message:         summary(result),
	})
	metrics.RecordSyncRun("success", time.Since(start))
	log.Info("Sync finished", map[string]interface{}{
		"properties":  result.PropertiesSynced,
		"branches":    result.BranchesSynced,
		"users":       result.UsersSynced,
		"owners":      result.OwnersSynced,
		"locations":   result.LocationsSynced,
		"item_errors": len(result.Errors),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

// reconcileGuarded turns a panic inside the import into an error so the
// user still reaches a terminal status.
func reconcileGuarded(ctx context.Context, rec *reconciler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sync panicked: %v", p)
		}
	}()
	return rec.reconcile(ctx)
}

func (s *syncService) writeStatus(ctx context.Context, userID string, update repository.StatusUpdate) {
	if err := s.users.UpdateSyncStatus(ctx, userID, update); err != nil {
		s.log.Error("Failed to write sync status", err, map[string]interface{}{
			"user_id": userID,
			"status":  string(update.Status),
		})
	}
}

func (s *syncService) releaseLock(ctx context.Context, run *syncRun) {
	if err := s.users.ReleaseSyncLock(context.WithoutCancel(ctx), run.user.ID, run.token); err != nil {
		s.log.Error("Failed to release sync lock", err, map[string]interface{}{
			"user_id": run.user.ID,
		})
	}
}

func summary(r *SyncResult) string {
	msg := fmt.Sprintf("Synced %d properties, %d branches, %d users, %d owners, %d locations",
		r.PropertiesSynced, r.BranchesSynced, r.UsersSynced, r.OwnersSynced, r.LocationsSynced)
	if len(r.Errors) > 0 {
		msg += fmt.Sprintf(" (%d errors)", len(r.Errors))
	}
	return msg
}
