package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/tokkosync/internal/database"
	"github.com/stwalsh4118/tokkosync/internal/models"
)

// PhotoScope narrows an unmigrated-photo scan. An empty UserID means all
// users.
type PhotoScope struct {
	UserID string
}

// PhotoRepository reads and ratchets photo migration state.
type PhotoRepository interface {
	// ListUnmigrated returns up to limit photos with no storage_path and an
	// id greater than afterID, ordered by id.
	ListUnmigrated(ctx context.Context, scope PhotoScope, afterID int64, limit int) ([]models.Photo, error)

	// MarkMigrated sets storage_path and points the URL trio at publicURL in
	// one statement. Returns false when the photo was already migrated.
	MarkMigrated(ctx context.Context, photoID int64, storagePath, publicURL string) (bool, error)
}

type photoRepository struct {
	db *database.Database
}

// NewPhotoRepository creates a new instance of PhotoRepository.
func NewPhotoRepository(db *database.Database) PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) ListUnmigrated(ctx context.Context, scope PhotoScope, afterID int64, limit int) ([]models.Photo, error) {
	const columns = `ph.id, ph.property_id, ph."order", ph.image, ph.original, ph.thumb,
		ph.description, ph.is_front_cover, ph.is_blueprint, ph.storage_path`

	var (
		rows pgx.Rows
		err  error
	)
	if scope.UserID == "" {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT `+columns+`
			FROM tokko_property_photo ph
			WHERE ph.storage_path IS NULL AND ph.id > $1
			ORDER BY ph.id
			LIMIT $2`, afterID, limit)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT `+columns+`
			FROM tokko_property_photo ph
			JOIN properties p ON p.id = ph.property_id
			WHERE ph.storage_path IS NULL AND ph.id > $1 AND p.user_id = $3
			ORDER BY ph.id
			LIMIT $2`, afterID, limit, scope.UserID)
	}
	if err != nil {
		return nil, classify("list unmigrated photos", err)
	}
	defer rows.Close()

	photos := make([]models.Photo, 0, limit)
	for rows.Next() {
		var ph models.Photo
		if err := rows.Scan(
			&ph.ID,
			&ph.PropertyID,
			&ph.Order,
			&ph.Image,
			&ph.Original,
			&ph.Thumb,
			&ph.Description,
			&ph.IsFrontCover,
			&ph.IsBlueprint,
			&ph.StoragePath,
		); err != nil {
			return nil, classify("scan photo", err)
		}
		photos = append(photos, ph)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate photos", err)
	}

	return photos, nil
}

func (r *photoRepository) MarkMigrated(ctx context.Context, photoID int64, storagePath, publicURL string) (bool, error) {
	query := `
		UPDATE tokko_property_photo
		SET storage_path = $2, image = $3, original = $3, thumb = $3
		WHERE id = $1 AND storage_path IS NULL`

	tag, err := r.db.Pool.Exec(ctx, query, photoID, storagePath, publicURL)
	if err != nil {
		return false, classify("mark photo migrated", err)
	}
	return tag.RowsAffected() == 1, nil
}
