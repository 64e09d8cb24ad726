// Package internal contains helper utilities that are intentionally private to goAccount:
// refresh token encoding, secret hashing, numeric code generation and SCAN
// based key counting.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - rate: Redis-backed fixed-window limiters
//   - stores: Redis reset-code store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAccount API.
//   - Be imported by any package outside the goAccount module.
package internal
