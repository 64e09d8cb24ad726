package session

import "time"

// Entry is one live refresh session of a user.
type Entry struct {
	// Hash is the hex SHA-256 of the refresh secret.
	Hash     string
	IssuedAt time.Time
}

// ExpiresAt reports when e stops authorizing refreshes under ttl.
func (e Entry) ExpiresAt(ttl time.Duration) time.Time {
	return e.IssuedAt.Add(ttl)
}
