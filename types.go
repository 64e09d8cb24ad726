package goAccount

import (
	"context"
	"strings"
	"time"
)

// Role is the assigned role of an account.
type Role uint8

const (
	RoleUnset Role = iota
	RoleDeveloper
	RoleProjectManager
	RoleTeamLead
	RoleAdmin
)

var roleNames = [...]string{
	RoleUnset:          "unset",
	RoleDeveloper:      "developer",
	RoleProjectManager: "project_manager",
	RoleTeamLead:       "team_lead",
	RoleAdmin:          "admin",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// ParseRole accepts the canonical names plus the spaced display forms
// ("Project Manager"). The empty string parses as RoleUnset.
func ParseRole(s string) (Role, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if norm == "" {
		return RoleUnset, true
	}
	for i, name := range roleNames {
		if name == norm {
			return Role(i), true
		}
	}
	return RoleUnset, false
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, ok := ParseRole(string(text))
	if !ok {
		return ErrRoleInvalid
	}
	*r = parsed
	return nil
}

// UserRecord is the stored account as the directory returns it. It carries
// the password hash and never leaves the engine; callers receive UserView.
type UserRecord struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// View projects r onto its outward-facing fields.
func (r UserRecord) View() UserView {
	return UserView{
		ID:       r.UserID,
		Username: r.Username,
		Email:    r.Email,
		Role:     r.Role,
	}
}

// UserView is the only user shape the engine returns. It has no hash field.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// UserDirectory is the account storage collaborator. Lookups return an
// error wrapping ErrUserNotFound when nothing matches; Create returns one
// wrapping ErrConflict on a duplicate username or email.
type UserDirectory interface {
	GetByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetByID(ctx context.Context, userID string) (UserRecord, error)
	GetByEmail(ctx context.Context, email string) (UserRecord, error)
	Create(ctx context.Context, user UserRecord) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// Mailer delivers a reset code to an address.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TokenPair is an access token plus the refresh token that rotates it.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	User   UserView
	Tokens TokenPair
}

// RefreshResult is returned by Engine.Refresh.
type RefreshResult struct {
	UserID string
	Tokens TokenPair
}

// RegisterInput is the account creation request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// ResetRequestResult is returned by Engine.RequestResetCode. DeliveryWarning
// is set when the code was issued but could not be mailed.
type ResetRequestResult struct {
	ExpiresAt       time.Time
	DeliveryWarning error
}

// SessionInfo describes one live refresh session.
type SessionInfo struct {
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthResult is returned by Engine.ValidateAccess.
type AuthResult struct {
	UserID    string
	Role      Role
	ExpiresAt time.Time
}
