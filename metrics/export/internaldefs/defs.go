package internaldefs

import (
	"sort"

	goAccount "github.com/MrEthical07/goAccount"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goAccount.MetricLoginSuccess, Name: "goaccount_login_success_total", Help: "Successful login attempts."},
	{ID: goAccount.MetricLoginFailure, Name: "goaccount_login_failure_total", Help: "Failed login attempts."},
	{ID: goAccount.MetricLoginRateLimited, Name: "goaccount_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goAccount.MetricRefreshSuccess, Name: "goaccount_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goAccount.MetricRefreshFailure, Name: "goaccount_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: goAccount.MetricRefreshReuseDetected, Name: "goaccount_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation or revocation."},
	{ID: goAccount.MetricSessionCreated, Name: "goaccount_session_created_total", Help: "Created refresh sessions."},
	{ID: goAccount.MetricSessionEvicted, Name: "goaccount_session_evicted_total", Help: "Sessions evicted by the per-user cap."},
	{ID: goAccount.MetricSessionInvalidated, Name: "goaccount_session_invalidated_total", Help: "Session invalidations (logout, reset, expiry)."},
	{ID: goAccount.MetricLogout, Name: "goaccount_logout_total", Help: "Logout operations."},
	{ID: goAccount.MetricRegisterSuccess, Name: "goaccount_register_success_total", Help: "Successful registrations."},
	{ID: goAccount.MetricRegisterDuplicate, Name: "goaccount_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goAccount.MetricPasswordRehashed, Name: "goaccount_password_rehashed_total", Help: "Stored hashes upgraded on login."},
	{ID: goAccount.MetricPasswordResetRequest, Name: "goaccount_password_reset_request_total", Help: "Reset codes issued."},
	{ID: goAccount.MetricPasswordResetRateLimited, Name: "goaccount_password_reset_rate_limited_total", Help: "Rate-limited reset requests and verifications."},
	{ID: goAccount.MetricPasswordResetDeliveryFailure, Name: "goaccount_password_reset_delivery_failure_total", Help: "Reset codes that could not be mailed."},
	{ID: goAccount.MetricPasswordResetVerifySuccess, Name: "goaccount_password_reset_verify_success_total", Help: "Successful code verifications."},
	{ID: goAccount.MetricPasswordResetVerifyFailure, Name: "goaccount_password_reset_verify_failure_total", Help: "Failed code verifications."},
	{ID: goAccount.MetricPasswordResetConfirmSuccess, Name: "goaccount_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: goAccount.MetricPasswordResetConfirmFailure, Name: "goaccount_password_reset_confirm_failure_total", Help: "Failed password resets."},
	{ID: goAccount.MetricPasswordResetAttemptsExceeded, Name: "goaccount_password_reset_attempts_exceeded_total", Help: "Reset codes burned by the attempt cap."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAccount.MetricLoginLatency, Name: "goaccount_login_latency_seconds", Help: "Login latency histogram."},
	{ID: goAccount.MetricRefreshLatency, Name: "goaccount_refresh_latency_seconds", Help: "Refresh latency histogram."},
}

// Gauge selects one point-in-time value read at scrape time.
type Gauge uint8

const (
	GaugeUsersWithSessions Gauge = iota
	GaugeOutstandingResetCodes
	GaugeAuditQueueDepth
)

// GaugeDef names one exported gauge. Store gauges are skipped when the store
// walk fails; StoreUpName reports that instead.
type GaugeDef struct {
	Gauge Gauge
	Name  string
	Help  string
	Store bool
}

// GaugeDefs lists every exported gauge in a stable order.
var GaugeDefs = []GaugeDef{
	{Gauge: GaugeUsersWithSessions, Name: "goaccount_users_with_sessions", Help: "Users holding at least one refresh session.", Store: true},
	{Gauge: GaugeOutstandingResetCodes, Name: "goaccount_reset_codes_outstanding", Help: "Users with an unexpired password reset code.", Store: true},
	{Gauge: GaugeAuditQueueDepth, Name: "goaccount_audit_queue_depth", Help: "Audit events waiting for the sink."},
}

const (
	StoreUpName        = "goaccount_store_stats_up"
	StoreUpHelp        = "1 when the last Redis keyspace walk succeeded."
	StoreTruncatedName = "goaccount_store_stats_truncated"
	StoreTruncatedHelp = "1 when a keyspace walk stopped at the scan limit."
	AuditDroppedName   = "goaccount_audit_dropped_total"
	AuditDroppedHelp   = "Audit events dropped by dispatcher backpressure, by event type."
	AuditPanicsName    = "goaccount_audit_sink_panics_total"
	AuditPanicsHelp    = "Audit sink calls that panicked."
)

// GaugeValue reads g from the scraped stats.
func GaugeValue(g Gauge, store goAccount.StoreStats, audit goAccount.AuditStats) int64 {
	switch g {
	case GaugeUsersWithSessions:
		return int64(store.UsersWithSessions)
	case GaugeOutstandingResetCodes:
		return int64(store.OutstandingResetCodes)
	case GaugeAuditQueueDepth:
		return int64(audit.Queued)
	default:
		return 0
	}
}

// SortedEventTypes returns the keys of byType in lexical order.
func SortedEventTypes(byType map[string]uint64) []string {
	out := make([]string, 0, len(byType))
	for k := range byType {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HistogramBounds are the upper bounds of the engine buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero
// padding a short or missing snapshot.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
