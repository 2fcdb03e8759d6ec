package models

// Scope is a platform API scope. Scopes are rows so that addons can hold a
// many-to-many set of them.
type Scope struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string `gorm:"size:200" json:"description"`
}
