package models

import (
	"time"
)

// SyncStatus is the lifecycle state of a user's feed synchronization.
type SyncStatus string

// Sync status values persisted in users.sync_status.
const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusDone    SyncStatus = "done"
	SyncStatusError   SyncStatus = "error"
)

// IsTerminal reports whether polling clients can stop waiting.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusDone || s == SyncStatusError
}

// Contact roles for secondary user rows imported from the feed.
const (
	ContactRoleAgent = "agent"
	ContactRoleOwner = "owner"
)

// User is either a primary account (holding a provider credential) or a
// contact imported from the feed (agent or owner), attached to its account
// through AccountUserID.
type User struct {
	CreatedAt            time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt            time.Time  `gorm:"column:updated_at" json:"updatedAt"`
	SyncStartedAt        *time.Time `gorm:"column:sync_started_at" json:"syncStartedAt,omitempty"`
	SyncFinishedAt       *time.Time `gorm:"column:sync_finished_at" json:"syncFinishedAt,omitempty"`
	SyncLockExpiresAt    *time.Time `gorm:"column:sync_lock_expires_at" json:"-"`
	Name                 *string    `gorm:"size:255;column:name" json:"name,omitempty"`
	Email                *string    `gorm:"size:255;index;column:email" json:"email,omitempty"`
	Phone                *string    `gorm:"size:100;column:phone" json:"phone,omitempty"`
	TokkoAPIKeyEncrypted *string    `gorm:"type:text;column:tokko_api_key_encrypted" json:"-"`
	TokkoAPIHash         *string    `gorm:"size:64;uniqueIndex;column:tokko_api_hash" json:"-"`
	SyncMessage          *string    `gorm:"type:text;column:sync_message" json:"syncMessage,omitempty"`
	SyncPropertiesCount  *int       `gorm:"column:sync_properties_count" json:"syncPropertiesCount,omitempty"`
	SyncLockToken        *string    `gorm:"size:36;column:sync_lock_token" json:"-"`
	TokkoID              *int64     `gorm:"uniqueIndex:idx_users_contact;column:tokko_id" json:"tokkoId,omitempty"`
	TokkoRole            *string    `gorm:"size:16;uniqueIndex:idx_users_contact;column:tokko_role" json:"tokkoRole,omitempty"`
	AccountUserID        *string    `gorm:"type:uuid;uniqueIndex:idx_users_contact;column:account_user_id" json:"accountUserId,omitempty"`
	ID                   string     `gorm:"type:uuid;primaryKey" json:"id"`
	SyncStatus           SyncStatus `gorm:"size:16;not null;default:'idle';column:sync_status" json:"syncStatus"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
