package models

import "gorm.io/gorm"

// User owns challenges. Authentication is handled elsewhere; the backend only
// needs an identity to attach challenges to.
type User struct {
	gorm.Model
	Username string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email"`

	Challenges []Challenge `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
