package flows

import (
	"context"
	"errors"
	"net/mail"
	"slices"
	"strings"
)

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureBadRequest
	RegisterFailureRole
	RegisterFailurePasswordPolicy
	RegisterFailureHash
	RegisterFailureConflict
	RegisterFailureCreate
)

// RegisterRequest is the validated input of account creation.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Role     string
	// Privileged skips the AssignableRoles check. Only trusted callers set it.
	Privileged bool
}

// RegisterResult carries the created user or failure metadata.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	Reason  string
	User    UserRecord
}

// RegisterDeps captures account creation dependencies.
type RegisterDeps struct {
	DefaultRole     string
	AssignableRoles []string
	// CanonicalRole maps any accepted spelling to the stored role name.
	CanonicalRole func(string) (string, bool)

	NewUserID      func() string
	HashPassword   func(string) (string, error)
	PasswordPolicy func(error) bool

	CreateUser func(context.Context, UserRecord) (UserRecord, error)
	Conflict   error
}

// RunRegister validates input, hashes the password and creates the user.
// No session is opened; the caller logs in separately.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)

	switch {
	case username == "":
		return RegisterResult{Failure: RegisterFailureBadRequest, Reason: "empty_username"}
	case email == "":
		return RegisterResult{Failure: RegisterFailureBadRequest, Reason: "empty_email"}
	case req.Password == "":
		return RegisterResult{Failure: RegisterFailureBadRequest, Reason: "empty_password"}
	case strings.Contains(username, "@"):
		// Identifiers containing @ always resolve as emails.
		return RegisterResult{Failure: RegisterFailureBadRequest, Reason: "invalid_username"}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return RegisterResult{Failure: RegisterFailureBadRequest, Reason: "invalid_email", Err: err}
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = deps.DefaultRole
	}
	if deps.CanonicalRole != nil {
		canonical, ok := deps.CanonicalRole(role)
		if !ok {
			return RegisterResult{Failure: RegisterFailureRole, Reason: "role_invalid"}
		}
		role = canonical
	}
	if !req.Privileged && !slices.Contains(deps.AssignableRoles, role) {
		return RegisterResult{Failure: RegisterFailureRole, Reason: "role_not_assignable"}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		if deps.PasswordPolicy != nil && deps.PasswordPolicy(err) {
			return RegisterResult{Failure: RegisterFailurePasswordPolicy, Reason: "password_policy", Err: err}
		}
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	created, err := deps.CreateUser(ctx, UserRecord{
		UserID:       deps.NewUserID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if deps.Conflict != nil && errors.Is(err, deps.Conflict) {
			return RegisterResult{Failure: RegisterFailureConflict, Reason: "duplicate", Err: err}
		}
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}
	return RegisterResult{User: created}
}
