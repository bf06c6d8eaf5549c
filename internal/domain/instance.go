package domain

import "time"

// Instance identifies this lending server when it is advertised on the network.
type Instance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}
