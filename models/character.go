package models

import "time"

// Character is a persona users chat with. ShortName identifies its
// knowledge collection; Name is the display name used in prompts.
type Character struct {
	ID                 int64     `json:"id" db:"id"`
	ShortName          string    `json:"short_name" db:"short_name"`
	Name               string    `json:"name" db:"name"`
	Description        *string   `json:"description,omitempty" db:"description"`
	BackgroundImage    *string   `json:"background_image,omitempty" db:"background_image"`
	ProfileImage       *string   `json:"profile_image,omitempty" db:"profile_image"`
	OriginalPrice      *float64  `json:"original_price,omitempty" db:"original_price"`
	NewPrice           *float64  `json:"new_price,omitempty" db:"new_price"`
	PercentageDiscount *float64  `json:"percentage_discount,omitempty" db:"percentage_discount"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Character model
func (Character) TableName() string {
	return "characters"
}

// NewCharacter creates a character; the id is assigned by the database
func NewCharacter(shortName, name string) *Character {
	now := time.Now()
	return &Character{
		ShortName: shortName,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
