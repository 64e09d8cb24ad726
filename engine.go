package goAccount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/internal/audit"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/internal/stores"
	"github.com/MrEthical07/goAccount/jwt"
	"github.com/MrEthical07/goAccount/password"
	"github.com/MrEthical07/goAccount/session"
)

// Engine runs the session and reset-code lifecycles. It is safe for
// concurrent use once built; configuration is immutable.
type Engine struct {
	config       Config
	sessionStore *session.Store
	resetStore   *stores.ResetCodeStore
	rateLimiter  *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	verifier     *password.Verifier
	jwtManager   *jwt.Manager
	directory    UserDirectory
	mailer       Mailer
	logger       *slog.Logger
}

// Close drains pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) ready() bool {
	return e != nil && e.sessionStore != nil && e.jwtManager != nil && e.directory != nil
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

/*
====================================
LOGIN
====================================
*/

// Login verifies identifier (username or email) and password and opens a
// new refresh session. Older sessions stay valid up to
// Session.MaxSessionsPerUser.
func (e *Engine) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	res := internalflows.RunLogin(ctx, identifier, password, e.loginFlowDeps())
	if res.Failure == internalflows.LoginFailureNone {
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricSessionCreated)
		if res.Rehashed {
			e.metricInc(MetricPasswordRehashed)
			e.emitAudit(ctx, auditEventPasswordRehashed, true, res.User.UserID, nil, nil)
		}
		if res.Evicted > 0 {
			for i := 0; i < res.Evicted; i++ {
				e.metricInc(MetricSessionEvicted)
			}
			e.emitAudit(ctx, auditEventSessionsEvictedOverflow, true, res.User.UserID, nil, func() map[string]string {
				return map[string]string{
					"evicted": fmt.Sprint(res.Evicted),
				}
			})
		}
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.UserID, nil, nil)
		return LoginResult{
			User:   fromFlowUser(res.User).View(),
			Tokens: fromFlowTokens(res.Tokens),
		}, nil
	}

	var err error
	reason := ""
	switch res.Failure {
	case internalflows.LoginFailureBadRequest:
		err, reason = ErrBadRequest, "empty_input"
	case internalflows.LoginFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			e.emitAudit(ctx, auditEventLoginRateLimited, false, res.User.UserID, ErrRateLimited, nil)
			return LoginResult{}, ErrRateLimited
		}
		err, reason = storeError(res.Err), "limiter_unavailable"
	case internalflows.LoginFailureUserNotFound:
		err, reason = ErrUserNotFound, "user_not_found"
	case internalflows.LoginFailureLookup:
		err, reason = storeError(res.Err), "lookup_failed"
	case internalflows.LoginFailureInvalidCredentials:
		err, reason = ErrInvalidCredentials, "invalid_password"
		if res.Err != nil {
			e.warn("stored password hash unreadable", "user_id", res.User.UserID, "error", res.Err)
		}
	case internalflows.LoginFailureIssue:
		err, reason = fmt.Errorf("%w: %v", ErrIssuance, res.Err), "issue_failed"
	case internalflows.LoginFailureSessionStore:
		err, reason = storeError(res.Err), "session_store"
	default:
		err, reason = fmt.Errorf("%w: %v", ErrEngineNotReady, res.Err), "unknown"
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, res.User.UserID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return LoginResult{}, err
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		ClientIPFromContext: clientIPFromContext,
		CheckLoginRate:      e.rateLimiter.CheckLogin,
		IncrementLoginRate:  e.rateLimiter.IncrementLogin,
		ResetLoginRate:      e.rateLimiter.ResetLogin,
		GetUserByIdentifier: func(ctx context.Context, identifier string) (internalflows.UserRecord, error) {
			user, err := e.directory.GetByIdentifier(ctx, identifier)
			return toFlowUser(user), err
		},
		UserNotFound:       ErrUserNotFound,
		VerifyPassword:     e.verifier.Verify,
		UpdatePasswordHash: e.directory.UpdatePasswordHash,
		Issue:              e.issueFlowDeps(),
		Sessions:           e.sessionStore,
		Warn:               e.warn,
	}
	if e.config.Password.UpgradeOnLogin {
		deps.NeedsRehash = e.verifier.NeedsRehash
		deps.HashPassword = e.verifier.Hash
	}
	return deps
}

func (e *Engine) issueFlowDeps() internalflows.IssueDeps {
	return internalflows.IssueDeps{
		Now:                time.Now,
		RefreshTTL:         e.config.JWT.RefreshTTL,
		CreateAccess:       e.jwtManager.CreateAccess,
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
	}
}

/*
====================================
REFRESH
====================================
*/

// Refresh rotates refreshToken: the presented token is consumed, a new pair
// is issued and its hash registered, in that order. Of several concurrent
// calls with the same token exactly one succeeds.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if !e.ready() {
		return RefreshResult{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricRefreshLatency, start)

	res := internalflows.RunRefresh(ctx, refreshToken, e.refreshFlowDeps())
	if res.Failure == internalflows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, nil, nil)
		return RefreshResult{UserID: res.UserID, Tokens: fromFlowTokens(res.Tokens)}, nil
	}

	var err error
	reason := ""
	switch res.Failure {
	case internalflows.RefreshFailureMissing:
		err, reason = ErrUnauthenticated, "missing"
	case internalflows.RefreshFailureDecode:
		err, reason = ErrInvalidToken, "decode_failed"
	case internalflows.RefreshFailureUserNotFound:
		err, reason = ErrUserNotFound, "user_not_found"
	case internalflows.RefreshFailureLookup:
		err, reason = storeError(res.Err), "lookup_failed"
	case internalflows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, ErrInvalidToken, nil)
		return RefreshResult{}, ErrInvalidToken
	case internalflows.RefreshFailureExpired:
		e.metricInc(MetricSessionInvalidated)
		err, reason = ErrInvalidToken, "expired"
	case internalflows.RefreshFailureSessionStore:
		err, reason = storeError(res.Err), "consume_failed"
	case internalflows.RefreshFailureIssue:
		err, reason = fmt.Errorf("%w: %v", ErrIssuance, res.Err), "issue_failed"
	case internalflows.RefreshFailureRegister:
		err, reason = storeError(res.Err), "register_failed"
	default:
		err, reason = fmt.Errorf("%w: %v", ErrEngineNotReady, res.Err), "unknown"
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, err, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
	return RefreshResult{}, err
}

func (e *Engine) refreshFlowDeps() internalflows.RefreshDeps {
	return internalflows.RefreshDeps{
		DecodeRefreshToken: internal.DecodeRefreshToken,
		HashRefreshSecret:  internal.HashRefreshSecret,
		GetUserByID: func(ctx context.Context, userID string) (internalflows.UserRecord, error) {
			user, err := e.directory.GetByID(ctx, userID)
			return toFlowUser(user), err
		},
		UserNotFound:    ErrUserNotFound,
		Sessions:        e.sessionStore,
		SessionNotFound: session.ErrSessionNotFound,
		SessionExpired:  session.ErrSessionExpired,
		Issue:           e.issueFlowDeps(),
	}
}

/*
====================================
LOGOUT / INTROSPECTION
====================================
*/

// Logout revokes every refresh session of userID. Access tokens already
// issued stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return ErrBadRequest
	}
	if err := internalflows.RunLogout(ctx, userID, internalflows.LogoutDeps{Sessions: e.sessionStore}); err != nil {
		wrapped := storeError(err)
		e.emitAudit(ctx, auditEventLogout, false, userID, wrapped, nil)
		return wrapped
	}
	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogout, true, userID, nil, nil)
	return nil
}

// ActiveSessionCount returns the number of live refresh sessions of userID.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.sessionStore.Count(ctx, userID)
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}

// ListSessions returns the live refresh sessions of userID, oldest first.
// Refresh secrets and their hashes are not exposed.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	entries, err := e.sessionStore.List(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]SessionInfo, 0, len(entries))
	for _, entry := range entries {
		out = append(out, SessionInfo{
			IssuedAt:  entry.IssuedAt.UTC(),
			ExpiresAt: entry.ExpiresAt(e.config.JWT.RefreshTTL).UTC(),
		})
	}
	return out, nil
}

// ValidateAccess verifies an access token by signature and claims only; no
// store is consulted.
func (e *Engine) ValidateAccess(_ context.Context, accessToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	res := internalflows.RunValidate(accessToken, internalflows.ValidateDeps{
		ParseAccess: e.jwtManager.ParseAccess,
	})
	if res.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, res.Err)
	}

	role, _ := ParseRole(res.Claims.Role)
	out := &AuthResult{
		UserID: res.Claims.UID,
		Role:   role,
	}
	if res.Claims.ExpiresAt != nil {
		out.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return out, nil
}

/*
====================================
HELPERS
====================================
*/

// storeError keeps already-classified errors and wraps backend failures.
func storeError(err error) error {
	if err == nil {
		return ErrStoreUnavailable
	}
	if KindOf(err) != KindInternal || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func toFlowUser(user UserRecord) internalflows.UserRecord {
	return internalflows.UserRecord{
		UserID:       user.UserID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         user.Role.String(),
	}
}

func fromFlowUser(user internalflows.UserRecord) UserRecord {
	role, _ := ParseRole(user.Role)
	return UserRecord{
		UserID:       user.UserID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         role,
	}
}

func fromFlowTokens(pair internalflows.TokenPair) TokenPair {
	return TokenPair{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}
