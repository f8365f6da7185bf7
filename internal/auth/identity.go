package auth

import "context"

// Identity is the authenticated caller. Services take it as an explicit
// argument instead of reading ambient request state.
type Identity struct {
	UserID  uint64
	IsAdmin bool
	// TokenID and TokenExpiry identify the presented token for logout.
	TokenID     string
	TokenExpiry int64
}

// CanModify reports whether the caller owns the resource or is an admin.
func (i Identity) CanModify(ownerID uint64) bool {
	return i.IsAdmin || i.UserID == ownerID
}

type contextKeyIdentity struct{}

// WithIdentity stores the identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity{}, id)
}

// FromContext returns the identity set by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKeyIdentity{}).(Identity)
	return id, ok && id.UserID != 0
}
