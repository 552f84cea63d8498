package models

import "time"

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Bathroom is a user-submitted location. It is owned by the web client; the
// ledger only reads it.
type Bathroom struct {
	ID          string          `json:"id" bson:"_id"`
	CreatedBy   string          `json:"created_by" bson:"created_by"`
	Title       string          `json:"title" bson:"title"`
	Coordinates *Coordinates    `json:"coordinates" bson:"coordinates,omitempty"`
	Validations map[string]bool `json:"validations,omitempty" bson:"validations,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty" bson:"created_at,omitempty"`
}

// ValidatorCount returns how many users currently validate the bathroom.
func (b *Bathroom) ValidatorCount() int {
	n := 0
	for _, ok := range b.Validations {
		if ok {
			n++
		}
	}
	return n
}

// Rating is a 1..5 score a user gave a bathroom.
type Rating struct {
	ID         string    `json:"id" bson:"_id"`
	UserUID    string    `json:"user_uid" bson:"user_uid"`
	BathroomID string    `json:"bathroom_id" bson:"bathroom_id"`
	Rating     int       `json:"rating" bson:"rating"`
	CreatedAt  time.Time `json:"created_at,omitempty" bson:"created_at,omitempty"`
}

// DocumentEvent is a created/updated change notification for one document.
// OldValue is only set for updates.
type DocumentEvent[T any] struct {
	ID       string `json:"id"`
	Value    *T     `json:"value"`
	OldValue *T     `json:"old_value,omitempty"`
}
