package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/tokkosync/internal/database"
	"github.com/stwalsh4118/tokkosync/internal/models"
)

// StatusUpdate is one write to a user's sync status fields.
type StatusUpdate struct {
	// PropertiesCount is left untouched when nil.
	PropertiesCount *int
	Status          models.SyncStatus
	Message         string
	// Started stamps sync_started_at and clears sync_finished_at.
	Started bool
}

// UserRepository defines data access for primary users and imported
// contacts.
type UserRepository interface {
	// FindByCredentialHash returns nil, nil when no user holds the hash.
	FindByCredentialHash(ctx context.Context, hash string) (*models.User, error)

	// FindByID returns nil, nil when the user does not exist.
	FindByID(ctx context.Context, id string) (*models.User, error)

	// Create inserts a primary user, assigning an id when empty.
	Create(ctx context.Context, user *models.User) error

	// AttachCredential stores the credential hash and sealed credential on
	// an existing user.
	AttachCredential(ctx context.Context, userID, hash, sealed string) error

	// AcquireSyncLock takes the per-user sync lock with token when it is
	// free or expired. Returns false when another holder owns it.
	AcquireSyncLock(ctx context.Context, userID, token string, ttl time.Duration) (bool, error)

	// ReleaseSyncLock frees the lock if token still holds it.
	ReleaseSyncLock(ctx context.Context, userID, token string) error

	// UpdateSyncStatus writes the status read model.
	UpdateSyncStatus(ctx context.Context, userID string, update StatusUpdate) error

	// UpsertContact inserts or updates an agent or owner row keyed by
	// (account_user_id, tokko_role, tokko_id) and returns its id.
	UpsertContact(ctx context.Context, contact models.User) (string, error)
}

type userRepository struct {
	db  *database.Database
	now func() time.Time
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *database.Database) UserRepository {
	return &userRepository{db: db, now: time.Now}
}

const userColumns = `
	id, name, email, phone, tokko_api_key_encrypted, tokko_api_hash,
	sync_status, sync_message, sync_properties_count,
	sync_started_at, sync_finished_at, tokko_id, tokko_role, account_user_id,
	created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.TokkoAPIKeyEncrypted,
		&u.TokkoAPIHash,
		&u.SyncStatus,
		&u.SyncMessage,
		&u.SyncPropertiesCount,
		&u.SyncStartedAt,
		&u.SyncFinishedAt,
		&u.TokkoID,
		&u.TokkoRole,
		&u.AccountUserID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByCredentialHash(ctx context.Context, hash string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tokko_api_hash = $1`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, hash))
	if err != nil {
		return nil, classify("find user by credential hash", err)
	}
	return user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("find user by id", err)
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.SyncStatus == "" {
		user.SyncStatus = models.SyncStatusIdle
	}

	query := `
		INSERT INTO users (
			id, name, email, phone, tokko_api_key_encrypted, tokko_api_hash,
			sync_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.TokkoAPIKeyEncrypted,
		user.TokkoAPIHash,
		string(user.SyncStatus),
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	return classify("create user", err)
}

func (r *userRepository) AttachCredential(ctx context.Context, userID, hash, sealed string) error {
	query := `
		UPDATE users
		SET tokko_api_hash = $2, tokko_api_key_encrypted = $3, updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, userID, hash, sealed)
	return classify("attach credential", err)
}

func (r *userRepository) AcquireSyncLock(ctx context.Context, userID, token string, ttl time.Duration) (bool, error) {
	now := r.now()

	query := `
		UPDATE users
		SET sync_lock_token = $2, sync_lock_expires_at = $3
		WHERE id = $1
		  AND (sync_lock_token IS NULL OR sync_lock_expires_at IS NULL OR sync_lock_expires_at < $4)`

	tag, err := r.db.Pool.Exec(ctx, query, userID, token, now.Add(ttl), now)
	if err != nil {
		return false, classify("acquire sync lock", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *userRepository) ReleaseSyncLock(ctx context.Context, userID, token string) error {
	query := `
		UPDATE users
		SET sync_lock_token = NULL, sync_lock_expires_at = NULL
		WHERE id = $1 AND sync_lock_token = $2`

	_, err := r.db.Pool.Exec(ctx, query, userID, token)
	return classify("release sync lock", err)
}

func (r *userRepository) UpdateSyncStatus(ctx context.Context, userID string, update StatusUpdate) error {
	query := `
		UPDATE users
		SET sync_status = $2,
		    sync_message = $3,
		    sync_properties_count = COALESCE($4, sync_properties_count),
		    sync_started_at = CASE WHEN $5 THEN NOW() ELSE sync_started_at END,
		    sync_finished_at = CASE WHEN $5 THEN NULL WHEN $6 THEN NOW() ELSE sync_finished_at END,
		    updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query,
		userID,
		string(update.Status),
		update.Message,
		update.PropertiesCount,
		update.Started,
		update.Status.IsTerminal(),
	)
	return classify("update sync status", err)
}

func (r *userRepository) UpsertContact(ctx context.Context, contact models.User) (string, error) {
	query := `
		INSERT INTO users (
			id, name, email, phone, tokko_id, tokko_role, account_user_id,
			sync_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'idle', NOW(), NOW())
		ON CONFLICT (account_user_id, tokko_role, tokko_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, users.name),
			email = COALESCE(EXCLUDED.email, users.email),
			phone = COALESCE(EXCLUDED.phone, users.phone),
			updated_at = NOW()
		RETURNING id`

	var id string
	err := r.db.Pool.QueryRow(ctx, query,
		uuid.New().String(),
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.TokkoID,
		contact.TokkoRole,
		contact.AccountUserID,
	).Scan(&id)
	if err != nil {
		return "", classify("upsert contact", err)
	}
	return id, nil
}
