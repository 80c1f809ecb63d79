// internal/models/package.go
package models

import "time"

// Package is a purchasable service tier. FieldSchema is a JSON Schema
// document (stored as JSONB) describing the custom form fields the package
// collects; it is configured at runtime by admins, not compiled in.
type Package struct {
	ID          string                 `json:"id" db:"id"`
	Name        string                 `json:"name" db:"name"`
	Description string                 `json:"description,omitempty" db:"description"`
	PriceCents  int                    `json:"priceCents" db:"price_cents"`
	FieldSchema map[string]interface{} `json:"fieldSchema,omitempty" db:"field_schema"`
	Active      bool                   `json:"active" db:"active"`
	CreatedAt   time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time              `json:"updatedAt" db:"updated_at"`
}

// Free reports whether the package requires no payment before work starts.
func (p *Package) Free() bool {
	return p.PriceCents <= 0
}
