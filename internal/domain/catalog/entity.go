package catalog

import "time"

// Topic is a tracked topic within a niche. The catalog is the boundary to
// topic acquisition: ingestion and ranking only see topic ids.
type Topic struct {
	Niche   string    `json:"niche" db:"niche"`
	TopicID string    `json:"topic_id" db:"topic_id"`
	Label   string    `json:"label" db:"label"`
	Active  bool      `json:"active" db:"active"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}
