package models

import (
	"time"

	"gorm.io/datatypes"
)

// Glance is a status widget declared by an addon. Key is unique within the addon.
type Glance struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	AddonID  uint   `gorm:"not null;uniqueIndex:idx_addon_glance_key" json:"addon_id"`
	Addon    *Addon `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Key      string `gorm:"size:40;not null;uniqueIndex:idx_addon_glance_key" json:"key"`
	Name     string `gorm:"size:100" json:"name"`
	DataURL  string `gorm:"size:200" json:"data_url"`
	Target   string `gorm:"size:40" json:"target"`
	IconURL  string `gorm:"size:200" json:"icon_url"`
	IconURL2 string `gorm:"column:icon_url2;size:200" json:"icon_url2"`
}

// GlanceUpdate is the stored history of content pushed to a glance.
type GlanceUpdate struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	GlanceID     uint           `gorm:"not null;index" json:"glance_id"`
	Glance       *Glance        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	LabelValue   string         `gorm:"size:1000;not null" json:"label_value"`
	LozengeType  string         `gorm:"size:10;not null;default:empty" json:"lozenge_type"`
	LozengeValue string         `gorm:"size:20" json:"lozenge_value"`
	IconURL      string         `gorm:"size:200" json:"icon_url"`
	IconURL2     string         `gorm:"column:icon_url2;size:200" json:"icon_url2"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	Target       string         `gorm:"size:50" json:"target"`
	CreatedAt    time.Time      `json:"created_at"`
}
