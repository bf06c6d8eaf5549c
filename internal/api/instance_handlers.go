package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

func (s *Server) registerInstanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getInstance",
		Method:      http.MethodGet,
		Path:        "/api/v1/instance",
		Summary:     "Server instance",
		Description: "Returns the identity of this server. Clients use it to tell servers apart.",
		Tags:        []string{"Instance"},
	}, s.handleGetInstance)
}

// InstanceOutput wraps the instance for huma.
type InstanceOutput struct {
	Body *domain.Instance
}

func (s *Server) handleGetInstance(ctx context.Context, _ *struct{}) (*InstanceOutput, error) {
	instance, err := s.services.Instance.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &InstanceOutput{Body: instance}, nil
}
