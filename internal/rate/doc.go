// Package rate implements the Redis fixed-window counters that throttle
// password guessing and reset-code abuse.
//
// Every counter is INCR plus EXPIRE on the first hit of a window. Keys,
// under the configured prefix (default arl):
//   - <prefix>:login:<identifier>  failed logins per identifier
//   - <prefix>:login-ip:<ip>       failed logins per client IP
//   - <prefix>:reset:<email>       reset-code requests per email
//   - <prefix>:verify:<scope>      failed reset-code verifications per email or IP
//
// Policy (which operation is charged and when) lives in internal/flows.
package rate
