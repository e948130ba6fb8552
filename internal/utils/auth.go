package utils

import "context"

// Principal is the authenticated buyer or operator behind a request.
type Principal struct {
	UserID uint
	Email  string
	Role   string
}

func (p Principal) Admin() bool { return p.Role == RoleAdmin }

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns false for anonymous requests.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.UserID == 0 {
		return Principal{}, false
	}
	return p, true
}

// SetUserContext is shorthand for WithPrincipal, used by the auth middleware.
func SetUserContext(ctx context.Context, id uint, email, role string) context.Context {
	return WithPrincipal(ctx, Principal{UserID: id, Email: email, Role: role})
}

func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok
}

func GetUserEmailFromContext(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Email
}

func GetUserRoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Role
}

// IsAdmin also admits internal service requests.
func IsAdmin(ctx context.Context) bool {
	if IsInternalRequest(ctx) {
		return true
	}
	p, ok := PrincipalFrom(ctx)
	return ok && p.Admin()
}
