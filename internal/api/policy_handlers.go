package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/almogrr/projectTrainigLibary/internal/policy"
)

func (s *Server) registerPolicyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getPolicy",
		Method:      http.MethodGet,
		Path:        "/api/v1/policy",
		Summary:     "Loan policy",
		Description: "Maximum loan duration for each book category",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetPolicy)
}

// PolicyResponse lists the active loan durations.
type PolicyResponse struct {
	Entries []policy.Entry `json:"entries"`
}

// PolicyOutput wraps PolicyResponse for huma.
type PolicyOutput struct {
	Body PolicyResponse
}

func (s *Server) handleGetPolicy(ctx context.Context, _ *struct{}) (*PolicyOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	return &PolicyOutput{Body: PolicyResponse{Entries: s.services.Policy.Entries()}}, nil
}
