package storage

import (
	"context"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/radsafe/radman-monitor/internal/radhaz"
	"github.com/radsafe/radman-monitor/internal/radman"
)

// Store provides an interface for managing exposure monitoring data storage
// operations. It handles monitoring sessions and converted readings.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new monitoring session and returns its
	// unique identifier. The device and probe identities are denormalized
	// into queryable columns and kept in full as JSON.
	CreateSession(ctx context.Context, device radman.DeviceInfo, probe radman.ProbeInfo, standardID string, freqMHz *float64) (sessionID int64, err error)

	// Session retrieves a specific monitoring session by its ID.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all monitoring sessions, ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreReadings saves a batch of converted readings for a session in a
	// single transaction.
	StoreReadings(ctx context.Context, sessionID int64, readings []radhaz.Reading) error

	// Readings returns the stored readings for a session in timestamp
	// order, optionally filtered by WithTimeRange and bounded by WithLimit.
	Readings(ctx context.Context, sessionID int64, opts ...ReadingsOption) ([]Reading, error)

	// ReadingStats returns aggregate figures for a session's readings.
	ReadingStats(ctx context.Context, sessionID int64) (*ReadingStats, error)

	// Close releases all database connections and resources. It is safe to
	// call Close multiple times.
	Close() error
}

type readingsQuery struct {
	from, to *time.Time
	limit    int
}

// ReadingsOption configures a Readings query.
type ReadingsOption func(*readingsQuery)

// WithTimeRange restricts a Readings query to [from, to].
func WithTimeRange(from, to time.Time) ReadingsOption {
	return func(q *readingsQuery) {
		q.from, q.to = &from, &to
	}
}

// WithLimit bounds the number of readings returned.
func WithLimit(n int) ReadingsOption {
	return func(q *readingsQuery) {
		q.limit = n
	}
}
