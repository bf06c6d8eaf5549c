package domain

import "time"

// Syncable carries the identity and timestamps shared by catalog and account records.
type Syncable struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	ID        string     `json:"id"`
}

// InitTimestamps sets CreatedAt and UpdatedAt to now.
func (s *Syncable) InitTimestamps(now time.Time) {
	s.CreatedAt = now
	s.UpdatedAt = now
}

// Touch records a modification at now.
func (s *Syncable) Touch(now time.Time) {
	s.UpdatedAt = now
}

