// Package middleware holds the net/http middleware of the account service:
// access-token guards, panic recovery, request logging and per-IP rate
// limiting.
//
// # Guards
//
//   - [Guard] verifies the access token (Bearer header or access cookie)
//     through Engine.ValidateAccess and stores the result in the context.
//   - [RequireActiveSession] additionally rejects users with no live refresh
//     session.
//   - [RequireRole] restricts a route to a set of roles.
//
// # Client address
//
// [ClientContext] resolves the caller's IP once per request. Forwarding
// headers count only when the direct peer matches a [ProxyResolver] entry;
// otherwise RemoteAddr wins.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Log request bodies, cookies or Authorization headers.
package middleware
