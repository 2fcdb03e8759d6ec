package models

import (
	"sort"
	"strings"
	"time"
)

// Addon is the installable integration definition served by the descriptor endpoint.
type Addon struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:200" json:"description"`
	VendorName  string    `gorm:"size:100" json:"vendor_name"`
	VendorURL   string    `gorm:"size:200" json:"vendor_url"`
	AllowGlobal bool      `gorm:"default:false" json:"allow_global"`
	AllowRoom   bool      `gorm:"default:false" json:"allow_room"`
	Scopes      []Scope   `gorm:"many2many:addon_scopes" json:"scopes"`
	Glances     []Glance  `json:"glances,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScopeNames returns the granted scope names sorted, so the same set always
// renders identically regardless of the order scopes were attached.
func (a *Addon) ScopeNames() []string {
	names := make([]string, 0, len(a.Scopes))
	for _, s := range a.Scopes {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// ScopeString is the space-delimited form sent to the token endpoint.
func (a *Addon) ScopeString() string {
	return strings.Join(a.ScopeNames(), " ")
}
