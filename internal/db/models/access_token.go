package models

import "time"

// AccessToken records one token issued by the platform. A rotated token is a
// new row; rows are never updated in place.
type AccessToken struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AddonID     *uint      `gorm:"index" json:"addon_id"`
	Addon       *Addon     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	InstallID   *uint      `gorm:"index" json:"install_id"`
	Install     *Install   `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	AccessToken string     `gorm:"size:255;uniqueIndex;not null" json:"-"`
	Scope       string     `gorm:"size:500" json:"scope"`
	GroupID     int64      `json:"group_id"`
	GroupName   string     `gorm:"size:100" json:"group_name"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasExpired treats a missing expiry as already expired.
func (t *AccessToken) HasExpired(now time.Time) bool {
	return t.ExpiresAt == nil || t.ExpiresAt.Before(now)
}
