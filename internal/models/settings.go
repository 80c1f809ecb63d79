// internal/models/settings.go
package models

import "time"

// SiteSetting is one white-label configuration entry: branding values,
// role display names, support contacts. Free-form key/value, admin-editable.
type SiteSetting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedBy string    `json:"updatedBy,omitempty" db:"updated_by"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
