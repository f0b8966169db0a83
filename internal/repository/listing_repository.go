package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/tokkosync/internal/database"
	"github.com/stwalsh4118/tokkosync/internal/models"
)

// ListingRepository writes the feed's object graph. Every write is an
// insert-or-update on the row's natural key; nothing is ever deleted.
type ListingRepository interface {
	// LocationExists reports whether a location row is already stored.
	LocationExists(ctx context.Context, id int64) (bool, error)

	// UpsertLocation writes a location keyed by its provider id. Its parent
	// must already exist when ParentLocationID is set.
	UpsertLocation(ctx context.Context, loc models.Location) error

	// UpsertBranch writes a branch keyed by (user_id, tokko_id) and returns
	// its local id.
	UpsertBranch(ctx context.Context, branch models.Branch) (int64, error)

	// UpsertProperty writes a property keyed by tokko_id and returns its
	// local id. Branch and producer provider ids are resolved to local ids
	// within the owning user's rows. Absent fields keep their stored values
	// and is_published is never touched.
	UpsertProperty(ctx context.Context, property models.Property) (int64, error)

	// UpsertPhoto writes a photo keyed by (property_id, order). The URL
	// trio is only refreshed while the photo is unmigrated.
	UpsertPhoto(ctx context.Context, photo models.Photo) error

	// UpsertVideo writes a video keyed by (property_id, order).
	UpsertVideo(ctx context.Context, video models.Video) error

	// UpsertTag writes a tag keyed by its provider id.
	UpsertTag(ctx context.Context, tag models.Tag) error

	// LinkTag records that a property carries a tag. Existing links are
	// left as they are.
	LinkTag(ctx context.Context, propertyID, tagID int64) error

	// FindPropertyByID returns nil, nil when the property does not exist.
	FindPropertyByID(ctx context.Context, id int64) (*models.Property, error)
}

type listingRepository struct {
	db *database.Database
}

// NewListingRepository creates a new instance of ListingRepository.
func NewListingRepository(db *database.Database) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) LocationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokko_location WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, classify("check location", err)
	}
	return exists, nil
}

func (r *listingRepository) UpsertLocation(ctx context.Context, loc models.Location) error {
	query := `
		INSERT INTO tokko_location (id, name, full_location, short_location, parent_location_id, depth)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, tokko_location.name),
			full_location = COALESCE(EXCLUDED.full_location, tokko_location.full_location),
			short_location = COALESCE(EXCLUDED.short_location, tokko_location.short_location),
			parent_location_id = COALESCE(EXCLUDED.parent_location_id, tokko_location.parent_location_id),
			depth = COALESCE(EXCLUDED.depth, tokko_location.depth)`

	_, err := r.db.Pool.Exec(ctx, query,
		loc.ID,
		loc.Name,
		loc.FullLocation,
		loc.ShortLocation,
		loc.ParentLocationID,
		loc.Depth,
	)
	return classify("upsert location", err)
}

func (r *listingRepository) UpsertBranch(ctx context.Context, b models.Branch) (int64, error) {
	query := `
		INSERT INTO tokko_branch (
			user_id, tokko_id, name, display_name, address, email, phone,
			alternative_phone, contact_time, branch_type, is_default,
			geo_lat, geo_long, logo
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id, tokko_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, tokko_branch.name),
			display_name = COALESCE(EXCLUDED.display_name, tokko_branch.display_name),
			address = COALESCE(EXCLUDED.address, tokko_branch.address),
			email = COALESCE(EXCLUDED.email, tokko_branch.email),
			phone = COALESCE(EXCLUDED.phone, tokko_branch.phone),
			alternative_phone = COALESCE(EXCLUDED.alternative_phone, tokko_branch.alternative_phone),
			contact_time = COALESCE(EXCLUDED.contact_time, tokko_branch.contact_time),
			branch_type = COALESCE(EXCLUDED.branch_type, tokko_branch.branch_type),
			is_default = COALESCE(EXCLUDED.is_default, tokko_branch.is_default),
			geo_lat = COALESCE(EXCLUDED.geo_lat, tokko_branch.geo_lat),
			geo_long = COALESCE(EXCLUDED.geo_long, tokko_branch.geo_long),
			logo = COALESCE(EXCLUDED.logo, tokko_branch.logo)
		RETURNING id`

	var id int64
	err := r.db.Pool.QueryRow(ctx, query,
		b.UserID,
		b.TokkoID,
		b.Name,
		b.DisplayName,
		b.Address,
		b.Email,
		b.Phone,
		b.AlternativePhone,
		b.ContactTime,
		b.BranchType,
		b.IsDefault,
		b.GeoLat,
		b.GeoLong,
		b.Logo,
	).Scan(&id)
	if err != nil {
		return 0, classify("upsert branch", err)
	}
	return id, nil
}

func (r *listingRepository) UpsertProperty(ctx context.Context, p models.Property) (int64, error) {
	query := `
		INSERT INTO properties (
			user_id, tokko_id, branch_id, producer_id, location_id,
			reference_code, title, description, address,
			property_type, property_type_code, operation_type, price, currency, expenses,
			room_amount, bathroom_amount, suite_amount, toilet_amount, parking_lot_amount,
			surface, roofed_surface, total_surface, geo_lat, geo_long, age, status,
			is_published, created_at, updated_at, synced_at
		) VALUES (
			$1, $2,
			(SELECT id FROM tokko_branch WHERE user_id = $1 AND tokko_id = $3),
			(SELECT id FROM users WHERE account_user_id = $1 AND tokko_role = 'agent' AND tokko_id = $4),
			$5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27,
			FALSE, NOW(), NOW(), NOW()
		)
		ON CONFLICT (tokko_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			branch_id = COALESCE(EXCLUDED.branch_id, properties.branch_id),
			producer_id = COALESCE(EXCLUDED.producer_id, properties.producer_id),
			location_id = COALESCE(EXCLUDED.location_id, properties.location_id),
			reference_code = COALESCE(EXCLUDED.reference_code, properties.reference_code),
			title = COALESCE(EXCLUDED.title, properties.title),
			description = COALESCE(EXCLUDED.description, properties.description),
			address = COALESCE(EXCLUDED.address, properties.address),
			property_type = COALESCE(EXCLUDED.property_type, properties.property_type),
			property_type_code = COALESCE(EXCLUDED.property_type_code, properties.property_type_code),
			operation_type = COALESCE(EXCLUDED.operation_type, properties.operation_type),
			price = COALESCE(EXCLUDED.price, properties.price),
			currency = COALESCE(EXCLUDED.currency, properties.currency),
			expenses = COALESCE(EXCLUDED.expenses, properties.expenses),
			room_amount = COALESCE(EXCLUDED.room_amount, properties.room_amount),
			bathroom_amount = COALESCE(EXCLUDED.bathroom_amount, properties.bathroom_amount),
			suite_amount = COALESCE(EXCLUDED.suite_amount, properties.suite_amount),
			toilet_amount = COALESCE(EXCLUDED.toilet_amount, properties.toilet_amount),
			parking_lot_amount = COALESCE(EXCLUDED.parking_lot_amount, properties.parking_lot_amount),
			surface = COALESCE(EXCLUDED.surface, properties.surface),
			roofed_surface = COALESCE(EXCLUDED.roofed_surface, properties.roofed_surface),
			total_surface = COALESCE(EXCLUDED.total_surface, properties.total_surface),
			geo_lat = COALESCE(EXCLUDED.geo_lat, properties.geo_lat),
			geo_long = COALESCE(EXCLUDED.geo_long, properties.geo_long),
			age = COALESCE(EXCLUDED.age, properties.age),
			status = COALESCE(EXCLUDED.status, properties.status),
			updated_at = NOW(),
			synced_at = NOW()
		RETURNING id`

	var id int64
	err := r.db.Pool.QueryRow(ctx, query,
		p.UserID,
		p.TokkoID,
		p.BranchTokkoID,
		p.ProducerTokkoID,
		p.LocationID,
		p.ReferenceCode,
		p.Title,
		p.Description,
		p.Address,
		p.PropertyType,
		p.PropertyTypeCode,
		p.OperationType,
		p.Price,
		p.Currency,
		p.Expenses,
		p.RoomAmount,
		p.BathroomAmount,
		p.SuiteAmount,
		p.ToiletAmount,
		p.ParkingLotAmount,
		p.Surface,
		p.RoofedSurface,
		p.TotalSurface,
		p.GeoLat,
		p.GeoLong,
		p.Age,
		p.Status,
	).Scan(&id)
	if err != nil {
		return 0, classify("upsert property", err)
	}
	return id, nil
}

func (r *listingRepository) UpsertPhoto(ctx context.Context, photo models.Photo) error {
	query := `
		INSERT INTO tokko_property_photo (
			property_id, "order", image, original, thumb, description, is_front_cover, is_blueprint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (property_id, "order") DO UPDATE SET
			description = COALESCE(EXCLUDED.description, tokko_property_photo.description),
			is_front_cover = EXCLUDED.is_front_cover,
			is_blueprint = EXCLUDED.is_blueprint,
			image = CASE WHEN tokko_property_photo.storage_path IS NULL
				THEN COALESCE(EXCLUDED.image, tokko_property_photo.image) ELSE tokko_property_photo.image END,
			original = CASE WHEN tokko_property_photo.storage_path IS NULL
				THEN COALESCE(EXCLUDED.original, tokko_property_photo.original) ELSE tokko_property_photo.original END,
			thumb = CASE WHEN tokko_property_photo.storage_path IS NULL
				THEN COALESCE(EXCLUDED.thumb, tokko_property_photo.thumb) ELSE tokko_property_photo.thumb END`

	_, err := r.db.Pool.Exec(ctx, query,
		photo.PropertyID,
		photo.Order,
		photo.Image,
		photo.Original,
		photo.Thumb,
		photo.Description,
		photo.IsFrontCover,
		photo.IsBlueprint,
	)
	return classify("upsert photo", err)
}

func (r *listingRepository) UpsertVideo(ctx context.Context, v models.Video) error {
	query := `
		INSERT INTO tokko_property_video (property_id, "order", url, title, provider, video_id, player_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (property_id, "order") DO UPDATE SET
			url = COALESCE(EXCLUDED.url, tokko_property_video.url),
			title = COALESCE(EXCLUDED.title, tokko_property_video.title),
			provider = COALESCE(EXCLUDED.provider, tokko_property_video.provider),
			video_id = COALESCE(EXCLUDED.video_id, tokko_property_video.video_id),
			player_url = COALESCE(EXCLUDED.player_url, tokko_property_video.player_url)`

	_, err := r.db.Pool.Exec(ctx, query,
		v.PropertyID,
		v.Order,
		v.URL,
		v.Title,
		v.Provider,
		v.VideoID,
		v.PlayerURL,
	)
	return classify("upsert video", err)
}

func (r *listingRepository) UpsertTag(ctx context.Context, tag models.Tag) error {
	query := `
		INSERT INTO tokko_property_tag (id, name, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, tokko_property_tag.name),
			type = EXCLUDED.type`

	_, err := r.db.Pool.Exec(ctx, query, tag.ID, tag.Name, tag.Type)
	return classify("upsert tag", err)
}

func (r *listingRepository) LinkTag(ctx context.Context, propertyID, tagID int64) error {
	query := `
		INSERT INTO tokko_property_tag_link (property_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	_, err := r.db.Pool.Exec(ctx, query, propertyID, tagID)
	return classify("link tag", err)
}

func (r *listingRepository) FindPropertyByID(ctx context.Context, id int64) (*models.Property, error) {
	query := `
		SELECT id, user_id, tokko_id, title, reference_code, is_published, created_at, updated_at
		FROM properties
		WHERE id = $1`

	var p models.Property
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.TokkoID,
		&p.Title,
		&p.ReferenceCode,
		&p.IsPublished,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("find property", err)
	}
	return &p, nil
}
