package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Identity resolves the authenticated caller of a stream request.
type Identity func(r *http.Request) (userID string, isLibrarian bool, ok bool)

// Handler serves the event stream.
type Handler struct {
	manager  *Manager
	identify Identity
	logger   *slog.Logger
}

// NewHandler creates a stream handler.
func NewHandler(manager *Manager, identify Identity, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, identify: identify, logger: logger}
}

// ServeHTTP streams events until the client goes away or the manager shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, librarian, ok := h.identify(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming not supported", slog.String("error", err.Error()))
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	client := h.manager.Connect(userID, librarian)
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With(slog.String("client_id", client.ID))

	if err := h.send(w, rc, "connected", map[string]string{"client_id": client.ID}); err != nil {
		log.Warn("failed to send connected message", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if err := h.send(w, rc, string(event.Type), event); err != nil {
				log.Info("client disconnected during send")
				return
			}
		case <-client.Done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(60 * time.Second)); err != nil {
		h.logger.Debug("write deadline unsupported", slog.String("error", err.Error()))
	}
	return nil
}
