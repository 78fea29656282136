package database

import (
	"context"
	"database/sql"
	"time"
)

// PoolHealth is a snapshot of database reachability and connection pool
// pressure, surfaced on the health endpoint.
type PoolHealth struct {
	ResponseTimeMs int64 `json:"response_time_ms"`
	OpenConns      int   `json:"open_conns"`
	InUse          int   `json:"in_use"`
	Idle           int   `json:"idle"`
	WaitCount      int64 `json:"wait_count"`
	WaitMs         int64 `json:"wait_ms"`
	MaxOpenConns   int   `json:"max_open_conns"`
}

// Health pings the database and reports pool statistics. The snapshot comes
// back even when the ping fails, so the caller still sees pool pressure on a
// saturated pool.
func Health(ctx context.Context, db *sql.DB) (PoolHealth, error) {
	start := time.Now()
	err := db.PingContext(ctx)

	stats := db.Stats()
	return PoolHealth{
		ResponseTimeMs: time.Since(start).Milliseconds(),
		OpenConns:      stats.OpenConnections,
		InUse:          stats.InUse,
		Idle:           stats.Idle,
		WaitCount:      stats.WaitCount,
		WaitMs:         stats.WaitDuration.Milliseconds(),
		MaxOpenConns:   stats.MaxOpenConnections,
	}, err
}
