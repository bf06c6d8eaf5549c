// Package mdns advertises the lending server on the local network.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/mdns"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

const (
	// ServiceType is the DNS-SD service type clients browse for.
	ServiceType = "_library._tcp"

	// APIVersion is advertised so clients can refuse incompatible servers.
	APIVersion = "v1"
)

// Service owns the running mDNS responder, if any.
type Service struct {
	mu     sync.Mutex
	server *mdns.Server
	logger *slog.Logger
}

// NewService returns an idle service.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Start advertises instance on port, replacing any earlier advertisement.
// Failures are usually environmental (no multicast in containers) and callers treat them as warnings.
func (s *Service) Start(instance *domain.Instance, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "library-server"
	}

	zone, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, txtRecords(instance))
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return fmt.Errorf("start mDNS server: %w", err)
	}
	s.server = server

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", port,
		"name", instance.Name,
		"id", instance.ID,
	)
	return nil
}

// Running reports whether an advertisement is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Stop ends the advertisement. Safe to call when not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return
	}
	_ = s.server.Shutdown()
	s.server = nil
	s.logger.Info("mDNS advertisement stopped")
}

func txtRecords(instance *domain.Instance) []string {
	records := []string{
		"id=" + instance.ID,
		"name=" + instance.Name,
		"api=" + APIVersion,
	}
	if instance.Version != "" {
		records = append(records, "version="+instance.Version)
	}
	return records
}
