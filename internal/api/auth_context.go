package api

import (
	"context"
	"net/http"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/ratelimit"
	"github.com/almogrr/projectTrainigLibary/internal/service"
)

type ctxKey string

const (
	identityKey ctxKey = "identity"
	authErrKey  ctxKey = "auth_error"
	clientKey   ctxKey = "client"
)

// Authenticator resolves access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Identity, error)
}

// authMiddleware resolves the bearer token, if any, into an identity on the request context.
// A bad token is remembered rather than rejected here so public routes still work;
// requireUser reports it on protected ones.
func authMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientKey, service.ClientInfo{
				IPAddress: ratelimit.ClientIP(r),
				UserAgent: r.UserAgent(),
			})

			if token, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
				identity, err := authn.Authenticate(ctx, token)
				if err != nil {
					ctx = context.WithValue(ctx, authErrKey, err)
				} else {
					ctx = context.WithValue(ctx, identityKey, identity)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the caller resolved by authMiddleware.
func IdentityFrom(ctx context.Context) (*service.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*service.Identity)
	return identity, ok && identity != nil
}

func clientFrom(ctx context.Context) service.ClientInfo {
	client, _ := ctx.Value(clientKey).(service.ClientInfo)
	return client
}

// requireUser returns the authenticated caller or a 401.
func requireUser(ctx context.Context) (*service.Identity, error) {
	if identity, ok := IdentityFrom(ctx); ok {
		return identity, nil
	}
	if err, ok := ctx.Value(authErrKey).(error); ok {
		return nil, err
	}
	return nil, apperrors.Unauthorized("authentication required")
}

// requireLibrarian returns the caller if their account may manage the catalog.
// The stored role wins over the one baked into the token.
func requireLibrarian(ctx context.Context) (*service.Identity, error) {
	identity, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !identity.User.IsLibrarian() {
		return nil, apperrors.Forbidden("librarian access required")
	}
	return identity, nil
}
