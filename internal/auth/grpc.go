package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hydro360/models"
	"hydro360/repository"
)

var (
	// ErrUnknownUser means the token subject no longer exists.
	ErrUnknownUser = errors.New("user not found")
	// ErrDeactivated means the account exists but was switched off by staff.
	ErrDeactivated = errors.New("account is deactivated")
)

// LoadActiveUser resolves the principal to its current account. The role and
// permissions on the returned user are authoritative, not the token's.
func LoadActiveUser(ctx context.Context, users repository.UserRepositoryI, p *Principal) (*models.User, error) {
	if p == nil {
		return nil, ErrMissingToken
	}
	u, err := users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	if !u.IsActive {
		return nil, ErrDeactivated
	}
	return u, nil
}

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts and validates
// a Bearer JWT from incoming metadata and injects the Principal into the context.
// Methods listed in allowUnauthenticated will bypass authentication (e.g., health checks).
func NewUnaryAuthInterceptor(secret string, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		p, err := ParseFromMD(ctx, secret)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing principal")
	}
	return p, nil
}

// RequireUser loads the caller's active account from the store.
func RequireUser(ctx context.Context, users repository.UserRepositoryI) (*models.User, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		return nil, status.Error(codes.Internal, "users repository not configured")
	}
	u, err := LoadActiveUser(ctx, users, p)
	switch {
	case errors.Is(err, ErrUnknownUser):
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, ErrDeactivated):
		return nil, status.Error(codes.PermissionDenied, "account is deactivated")
	case err != nil:
		return nil, status.Errorf(codes.Internal, "get user: %v", err)
	}
	return u, nil
}

// RequireRole ensures the caller's stored role is one of roles.
// The token's role claim is never trusted on its own.
func RequireRole(ctx context.Context, users repository.UserRepositoryI, roles ...models.Role) (*models.User, error) {
	u, err := RequireUser(ctx, users)
	if err != nil {
		return nil, err
	}
	if !u.HasRole(roles...) {
		return nil, status.Error(codes.PermissionDenied, "insufficient permissions")
	}
	return u, nil
}

// RequirePermission ensures the caller's effective permissions include perm.
func RequirePermission(ctx context.Context, users repository.UserRepositoryI, perm models.Permission) (*models.User, error) {
	u, err := RequireUser(ctx, users)
	if err != nil {
		return nil, err
	}
	if !u.HasPermission(perm) {
		return nil, status.Errorf(codes.PermissionDenied, "permission %s required", perm)
	}
	return u, nil
}
