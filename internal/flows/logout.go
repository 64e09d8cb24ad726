package flows

import "context"

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Sessions SessionStore
}

// RunLogout revokes every session of userID, not only the caller's.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	return deps.Sessions.Clear(ctx, userID)
}
