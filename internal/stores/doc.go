// Package stores holds the Redis-backed reset-code records used by password
// recovery.
//
// A user has at most one record, a hash at <prefix>:user:<id>. A second key
// <prefix>:code:<code> maps the digits back to the owner. Issue and Consume
// are single Lua scripts, so concurrent requests for one user leave exactly
// one record and a code is consumed at most once.
//
// The package neither generates codes nor sends mail; internal/flows does.
package stores
