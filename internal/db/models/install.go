package models

import "time"

// Install is one activation of an Addon into a group (global) or a room.
// OAuthID is the identity the platform reuses on every callback and is unique
// across all installs.
type Install struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AddonID     uint      `gorm:"not null;index" json:"addon_id"`
	Addon       *Addon    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	OAuthID     string    `gorm:"column:oauth_id;size:64;uniqueIndex;not null" json:"oauth_id"`
	OAuthSecret string    `gorm:"column:oauth_secret;size:64;not null" json:"-"`
	GroupID     int64     `json:"group_id"`
	RoomID      *int64    `json:"room_id"`
	InstalledAt time.Time `gorm:"not null" json:"installed_at"`
}

// IsGlobal reports whether the install covers the whole group rather than one room.
func (i *Install) IsGlobal() bool {
	return i.RoomID == nil
}
