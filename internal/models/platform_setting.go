package models

import "gorm.io/gorm"

// PlatformSetting holds platform-wide configuration edited at runtime.
// There should only ever be one row in this table.
type PlatformSetting struct {
	gorm.Model
	PaypalEmail *string `gorm:"size:255;uniqueIndex" json:"paypal_email"`
}
