package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health with per-component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"healthy or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Time the check took"`
	Message string `json:"message,omitempty" doc:"Failure reason"`
}

// HealthResponse contains health check data.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"healthy or unhealthy"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	SSEClients int                        `json:"sse_clients"`
}

// HealthOutput wraps the health response for huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{Status: "healthy", Components: make(map[string]ComponentHealth, len(s.opts.HealthChecks))}

	for name, check := range s.opts.HealthChecks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		start := time.Now()
		err := check(checkCtx)
		cancel()

		c := ComponentHealth{Status: "healthy", Latency: time.Since(start).String()}
		if err != nil {
			c.Status = "unhealthy"
			c.Message = err.Error()
			resp.Status = "unhealthy"
		}
		resp.Components[name] = c
	}

	if s.sseManager != nil {
		resp.SSEClients = s.sseManager.ClientCount()
	}
	return &HealthOutput{Body: resp}, nil
}
