package models

import (
	"time"
)

// Branch is an office of the agency behind a primary user.
// Unique per (user_id, tokko_id).
type Branch struct {
	Name             *string  `gorm:"size:255;column:name" json:"name,omitempty"`
	DisplayName      *string  `gorm:"size:255;column:display_name" json:"displayName,omitempty"`
	Address          *string  `gorm:"size:500;column:address" json:"address,omitempty"`
	Email            *string  `gorm:"size:255;column:email" json:"email,omitempty"`
	Phone            *string  `gorm:"size:100;column:phone" json:"phone,omitempty"`
	AlternativePhone *string  `gorm:"size:100;column:alternative_phone" json:"alternativePhone,omitempty"`
	ContactTime      *string  `gorm:"size:255;column:contact_time" json:"contactTime,omitempty"`
	BranchType       *string  `gorm:"size:50;column:branch_type" json:"branchType,omitempty"`
	IsDefault        *bool    `gorm:"column:is_default" json:"isDefault,omitempty"`
	GeoLat           *float64 `gorm:"column:geo_lat" json:"geoLat,omitempty"`
	GeoLong          *float64 `gorm:"column:geo_long" json:"geoLong,omitempty"`
	Logo             *string  `gorm:"type:text;column:logo" json:"logo,omitempty"`
	UserID           string   `gorm:"type:uuid;not null;uniqueIndex:idx_branch_user_tokko;column:user_id" json:"userId"`
	ID               int64    `gorm:"primaryKey" json:"id"`
	TokkoID          int64    `gorm:"not null;uniqueIndex:idx_branch_user_tokko;column:tokko_id" json:"tokkoId"`
}

// TableName specifies the table name for GORM.
func (Branch) TableName() string {
	return "tokko_branch"
}

// Location is a node of the place hierarchy (country, province, city,
// neighborhood). The primary key is the provider's location id.
type Location struct {
	Parent           *Location `gorm:"foreignKey:ParentLocationID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	Name             *string   `gorm:"size:255;column:name" json:"name,omitempty"`
	FullLocation     *string   `gorm:"size:500;column:full_location" json:"fullLocation,omitempty"`
	ShortLocation    *string   `gorm:"size:255;column:short_location" json:"shortLocation,omitempty"`
	ParentLocationID *int64    `gorm:"index;column:parent_location_id" json:"parentLocationId,omitempty"`
	Depth            *int      `gorm:"column:depth" json:"depth,omitempty"`
	ID               int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
}

// TableName specifies the table name for GORM.
func (Location) TableName() string {
	return "tokko_location"
}

// Property is a listing imported from the feed.
// All feed-sourced fields are pointers so that a field missing from the
// payload is written as NULL and never overwrites the stored value.
// IsPublished is local state and is never written by a sync.
type Property struct {
	CreatedAt        time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updatedAt"`
	SyncedAt         *time.Time `gorm:"column:synced_at" json:"syncedAt,omitempty"`
	Photos           []Photo    `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"photos,omitempty"`
	Videos           []Video    `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"videos,omitempty"`
	Location         *Location  `gorm:"foreignKey:LocationID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	BranchID         *int64     `gorm:"index;column:branch_id" json:"branchId,omitempty"`
	ProducerID       *string    `gorm:"type:uuid;column:producer_id" json:"producerId,omitempty"`
	LocationID       *int64     `gorm:"index;column:location_id" json:"locationId,omitempty"`
	ReferenceCode    *string    `gorm:"size:100;column:reference_code" json:"referenceCode,omitempty"`
	Title            *string    `gorm:"size:500;column:title" json:"title,omitempty"`
	Description      *string    `gorm:"type:text;column:description" json:"description,omitempty"`
	Address          *string    `gorm:"size:500;column:address" json:"address,omitempty"`
	PropertyType     *string    `gorm:"size:100;column:property_type" json:"propertyType,omitempty"`
	PropertyTypeCode *string    `gorm:"size:20;column:property_type_code" json:"propertyTypeCode,omitempty"`
	OperationType    *string    `gorm:"size:50;column:operation_type" json:"operationType,omitempty"`
	Price            *float64   `gorm:"column:price" json:"price,omitempty"`
	Currency         *string    `gorm:"size:10;column:currency" json:"currency,omitempty"`
	Expenses         *float64   `gorm:"column:expenses" json:"expenses,omitempty"`
	RoomAmount       *int       `gorm:"column:room_amount" json:"roomAmount,omitempty"`
	BathroomAmount   *int       `gorm:"column:bathroom_amount" json:"bathroomAmount,omitempty"`
	SuiteAmount      *int       `gorm:"column:suite_amount" json:"suiteAmount,omitempty"`
	ToiletAmount     *int       `gorm:"column:toilet_amount" json:"toiletAmount,omitempty"`
	ParkingLotAmount *int       `gorm:"column:parking_lot_amount" json:"parkingLotAmount,omitempty"`
	Surface          *float64   `gorm:"column:surface" json:"surface,omitempty"`
	RoofedSurface    *float64   `gorm:"column:roofed_surface" json:"roofedSurface,omitempty"`
	TotalSurface     *float64   `gorm:"column:total_surface" json:"totalSurface,omitempty"`
	GeoLat           *float64   `gorm:"column:geo_lat" json:"geoLat,omitempty"`
	GeoLong          *float64   `gorm:"column:geo_long" json:"geoLong,omitempty"`
	Age              *int       `gorm:"column:age" json:"age,omitempty"`
	Status           *int       `gorm:"column:status" json:"status,omitempty"`

	// Provider ids of the branch and producing agent, resolved to local ids
	// by the repository at write time.
	BranchTokkoID   *int64 `gorm:"-" json:"-"`
	ProducerTokkoID *int64 `gorm:"-" json:"-"`

	UserID      string `gorm:"type:uuid;not null;index;column:user_id" json:"userId"`
	ID          int64  `gorm:"primaryKey" json:"id"`
	TokkoID     int64  `gorm:"not null;uniqueIndex;column:tokko_id" json:"tokkoId"`
	IsPublished bool   `gorm:"not null;default:false;column:is_published" json:"isPublished"`
}

// TableName specifies the table name for GORM.
func (Property) TableName() string {
	return "properties"
}
