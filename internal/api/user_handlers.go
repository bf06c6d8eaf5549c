package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/me",
		Summary:     "Current user",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Description: "Lists every account. Librarians only.",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)
}

// UserOutput wraps a user for huma.
type UserOutput struct {
	Body *domain.User
}

// UserList is a list of accounts.
type UserList struct {
	Users []*domain.User `json:"users"`
	Total int            `json:"total"`
}

// UserListOutput wraps UserList for huma.
type UserListOutput struct {
	Body UserList
}

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	identity, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: identity.User}, nil
}

func (s *Server) handleListUsers(ctx context.Context, _ *struct{}) (*UserListOutput, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}
	users, err := s.services.Auth.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return &UserListOutput{Body: UserList{Users: users, Total: len(users)}}, nil
}
