package models

import "time"

// Club представляет шахматный клуб.
type Club struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Location    string    `json:"location" db:"location"`
	Description string    `json:"description" db:"description"`
	LogoKey     *string   `json:"-" db:"logo_key"`
	LogoURL     *string   `json:"logo_url,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	TotalMembers int `json:"total_members" db:"-"`
}
