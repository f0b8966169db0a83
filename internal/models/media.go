package models

// Photo belongs to a property and is keyed by (property_id, order).
// A photo is unmigrated while StoragePath is nil; once set it never
// returns to nil.
type Photo struct {
	Image        *string `gorm:"type:text;column:image" json:"image,omitempty"`
	Original     *string `gorm:"type:text;column:original" json:"original,omitempty"`
	Thumb        *string `gorm:"type:text;column:thumb" json:"thumb,omitempty"`
	Description  *string `gorm:"type:text;column:description" json:"description,omitempty"`
	StoragePath  *string `gorm:"type:text;index;column:storage_path" json:"storagePath,omitempty"`
	ID           int64   `gorm:"primaryKey" json:"id"`
	PropertyID   int64   `gorm:"not null;uniqueIndex:idx_photo_property_order;column:property_id" json:"propertyId"`
	Order        int     `gorm:"not null;uniqueIndex:idx_photo_property_order;column:order" json:"order"`
	IsFrontCover bool    `gorm:"not null;default:false;column:is_front_cover" json:"isFrontCover"`
	IsBlueprint  bool    `gorm:"not null;default:false;column:is_blueprint" json:"isBlueprint"`
}

// TableName specifies the table name for GORM.
func (Photo) TableName() string {
	return "tokko_property_photo"
}

// Migrated reports whether the photo has been copied to owned storage.
func (p Photo) Migrated() bool {
	return p.StoragePath != nil
}

// Video belongs to a property and is keyed by (property_id, order).
type Video struct {
	URL        *string `gorm:"type:text;column:url" json:"url,omitempty"`
	Title      *string `gorm:"size:500;column:title" json:"title,omitempty"`
	Provider   *string `gorm:"size:50;column:provider" json:"provider,omitempty"`
	VideoID    *string `gorm:"size:100;column:video_id" json:"videoId,omitempty"`
	PlayerURL  *string `gorm:"type:text;column:player_url" json:"playerUrl,omitempty"`
	ID         int64   `gorm:"primaryKey" json:"id"`
	PropertyID int64   `gorm:"not null;uniqueIndex:idx_video_property_order;column:property_id" json:"propertyId"`
	Order      int     `gorm:"not null;uniqueIndex:idx_video_property_order;column:order" json:"order"`
}

// TableName specifies the table name for GORM.
func (Video) TableName() string {
	return "tokko_property_video"
}

// Tag is a typed label; the primary key is the provider's tag id.
type Tag struct {
	Name *string `gorm:"size:255;column:name" json:"name,omitempty"`
	ID   int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Type int     `gorm:"not null;default:0;column:type" json:"type"`
}

// TableName specifies the table name for GORM.
func (Tag) TableName() string {
	return "tokko_property_tag"
}

// TagLink joins properties and tags.
type TagLink struct {
	Property   *Property `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"-"`
	Tag        *Tag      `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE" json:"-"`
	PropertyID int64     `gorm:"primaryKey;autoIncrement:false;column:property_id" json:"propertyId"`
	TagID      int64     `gorm:"primaryKey;autoIncrement:false;column:tag_id" json:"tagId"`
}

// TableName specifies the table name for GORM.
func (TagLink) TableName() string {
	return "tokko_property_tag_link"
}
