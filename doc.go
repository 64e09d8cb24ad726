// Package goAccount is the account core of a project-management service:
// login with JWT access tokens and rotating opaque refresh tokens,
// Redis-backed refresh sessions, and password reset through emailed
// one-time codes.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goAccount is the public surface. It exposes [Engine], [Builder], [Config],
// the error sentinels with their [ErrorKind] taxonomy, and value types
// (LoginResult, TokenPair, MetricsSnapshot). Flow orchestration, Redis
// scripts, rate limiting and audit dispatch live under internal/ and are
// never exported. User storage and mail delivery are supplied by the caller
// through [UserDirectory] and [Mailer]; see directory/ and mail/ for the
// bundled implementations.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Persist refresh tokens, reset codes or passwords in the clear.
//   - Import any sub-package that re-imports goAccount (no import cycles).
//
// # Performance contract
//
// ValidateAccess is the hot path. It verifies signature and claims only and
// never touches Redis or the directory. Login, Refresh and the reset
// operations are allowed a bounded number of Redis round-trips per call.
package goAccount
