// Package jwt signs and verifies the short-lived access tokens handed out at
// login and refresh. Tokens carry the user id in the uid claim and verify
// without a store lookup.
package jwt
