package goAccount

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
)

// Register creates an account. It does not log the user in. The role must
// be one of Config.Account.AssignableRoles.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (UserView, error) {
	return e.register(ctx, in, false)
}

// Provision creates an account with any role, admin included. It is meant
// for bootstrap and operator tooling and must not back a public route.
func (e *Engine) Provision(ctx context.Context, in RegisterInput) (UserView, error) {
	return e.register(ctx, in, true)
}

func (e *Engine) register(ctx context.Context, in RegisterInput, privileged bool) (UserView, error) {
	if !e.ready() {
		return UserView{}, ErrEngineNotReady
	}

	res := internalflows.RunRegister(ctx, internalflows.RegisterRequest{
		Username:   in.Username,
		Email:      in.Email,
		Password:   in.Password,
		Role:       in.Role,
		Privileged: privileged,
	}, e.registerFlowDeps())

	if res.Failure == internalflows.RegisterFailureNone {
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, res.User.UserID, nil, func() map[string]string {
			return map[string]string{"role": res.User.Role, "provisioned": strconv.FormatBool(privileged)}
		})
		return fromFlowUser(res.User).View(), nil
	}

	var err error
	switch res.Failure {
	case internalflows.RegisterFailureBadRequest:
		err = fmt.Errorf("%w: %s", ErrBadRequest, res.Reason)
	case internalflows.RegisterFailureRole:
		err = ErrRoleInvalid
	case internalflows.RegisterFailurePasswordPolicy:
		err = fmt.Errorf("%w: %v", ErrPasswordPolicy, res.Err)
	case internalflows.RegisterFailureConflict:
		e.metricInc(MetricRegisterDuplicate)
		err = ErrConflict
	case internalflows.RegisterFailureHash:
		err = fmt.Errorf("password hash failed: %w", res.Err)
	default:
		err = storeError(res.Err)
	}

	e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, func() map[string]string {
		return map[string]string{
			"reason": res.Reason,
		}
	})
	return UserView{}, err
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	assignable := make([]string, 0, len(e.config.Account.AssignableRoles))
	for _, r := range e.config.Account.AssignableRoles {
		assignable = append(assignable, r.String())
	}
	return internalflows.RegisterDeps{
		DefaultRole:     e.config.Account.DefaultRole.String(),
		AssignableRoles: assignable,
		CanonicalRole: func(name string) (string, bool) {
			r, ok := ParseRole(name)
			return r.String(), ok
		},
		NewUserID:      internal.NewUserID,
		HashPassword:   e.verifier.Hash,
		PasswordPolicy: isPasswordPolicyError,
		CreateUser: func(ctx context.Context, user internalflows.UserRecord) (internalflows.UserRecord, error) {
			record := fromFlowUser(user)
			record.CreatedAt = time.Now().UTC()
			created, err := e.directory.Create(ctx, record)
			return toFlowUser(created), err
		},
		Conflict: ErrConflict,
	}
}
