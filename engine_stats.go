package goAccount

import (
	"context"
	"fmt"
)

// storeStatsScanLimit bounds each SCAN walk made by StoreStats.
const storeStatsScanLimit = 100_000

// AuditStats reports the audit dispatcher. It is all zero when auditing is
// disabled.
type AuditStats struct {
	Queued        int
	Dropped       uint64
	SinkPanics    uint64
	DroppedByType map[string]uint64
}

// StoreStats is a point-in-time view of the Redis keyspace owned by the
// engine. Counts come from SCAN and are approximate under concurrent writes.
type StoreStats struct {
	// UsersWithSessions counts users holding a refresh session set.
	UsersWithSessions int
	// OutstandingResetCodes counts users with an unexpired reset code.
	OutstandingResetCodes int
	// Truncated is set when a walk stopped at the scan limit.
	Truncated bool
}

func (e *Engine) AuditStats() AuditStats {
	if e == nil || e.audit == nil {
		return AuditStats{DroppedByType: map[string]uint64{}}
	}
	st := e.audit.Stats()
	return AuditStats{
		Queued:        st.Queued,
		Dropped:       st.Dropped,
		SinkPanics:    st.SinkPanics,
		DroppedByType: st.DroppedByType,
	}
}

// StoreStats walks the session and reset-code keyspaces. It is meant for
// metrics scrapes, not request paths.
func (e *Engine) StoreStats(ctx context.Context) (StoreStats, error) {
	if e == nil || e.sessionStore == nil || e.resetStore == nil {
		return StoreStats{}, ErrEngineNotReady
	}

	var out StoreStats
	users, truncated, err := e.sessionStore.CountUsers(ctx, storeStatsScanLimit)
	if err != nil {
		return StoreStats{}, storeStatsError(err)
	}
	out.UsersWithSessions = users
	out.Truncated = truncated

	codes, truncated, err := e.resetStore.CountOutstanding(ctx, storeStatsScanLimit)
	if err != nil {
		return StoreStats{}, storeStatsError(err)
	}
	out.OutstandingResetCodes = codes
	out.Truncated = out.Truncated || truncated

	return out, nil
}

func storeStatsError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
