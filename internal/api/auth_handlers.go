package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/register",
		Summary:       "Register",
		Description:   "Creates a member account and signs it in. The first account on a new server becomes the root librarian.",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.rateLimited},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Login",
		Description: "Checks credentials and returns access and refresh tokens",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for a new token pair. The old refresh token stops working.",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Logout",
		Description: "Ends the session that owns the refresh token",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLogout)
}

// RegisterInput wraps the registration request.
type RegisterInput struct {
	Body service.RegisterRequest
}

// LoginInput wraps the login request.
type LoginInput struct {
	Body service.LoginRequest
}

// RefreshTokenRequest carries a refresh token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token from login or a previous refresh"`
}

// RefreshInput wraps the refresh request.
type RefreshInput struct {
	Body RefreshTokenRequest
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	AccessToken  string       `json:"access_token" doc:"PASETO access token"`
	RefreshToken string       `json:"refresh_token" doc:"Opaque refresh token"`
	TokenType    string       `json:"token_type" doc:"Always Bearer"`
	ExpiresIn    int          `json:"expires_in" doc:"Access token lifetime in seconds"`
	SessionID    string       `json:"session_id"`
	User         *domain.User `json:"user"`
}

// AuthOutput wraps AuthResponse for huma.
type AuthOutput struct {
	Body AuthResponse
}

func authOutput(resp *service.AuthResponse) *AuthOutput {
	return &AuthOutput{Body: AuthResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		SessionID:    resp.SessionID,
		User:         resp.User,
	}}
}

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Register(ctx, input.Body, clientFrom(ctx))
	if err != nil {
		return nil, err
	}
	return authOutput(resp), nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, input.Body, clientFrom(ctx))
	if err != nil {
		return nil, err
	}
	return authOutput(resp), nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Refresh(ctx, input.Body.RefreshToken, clientFrom(ctx))
	if err != nil {
		return nil, err
	}
	return authOutput(resp), nil
}

func (s *Server) handleLogout(ctx context.Context, input *RefreshInput) (*struct{}, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if err := s.services.Auth.Logout(ctx, input.Body.RefreshToken); err != nil {
		return nil, err
	}
	return nil, nil
}
