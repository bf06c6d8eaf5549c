package providers

import "time"

const (
	// shutdownTimeout bounds graceful shutdown of each handle.
	shutdownTimeout = 30 * time.Second

	sessionCleanupInterval = time.Hour
)
