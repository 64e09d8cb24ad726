// Package session keeps the set of live refresh sessions for each user in
// Redis.
//
// Each user owns one sorted set at <prefix>:<userID>. Members are hex SHA-256
// digests of refresh secrets and scores are issuance times in unix
// milliseconds. Every mutation is one Redis command or one Lua script, so
// concurrent refreshes of the same token see exactly one successful Consume.
//
// The package stores hashes only. It never parses tokens and never decides
// whether a caller is authenticated; the engine does that.
package session
