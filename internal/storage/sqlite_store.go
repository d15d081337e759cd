package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/radsafe/radman-monitor/internal/radhaz"
	"github.com/radsafe/radman-monitor/internal/radman"
)

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("storage: session not found")

// SqliteStore handles database operations backed by a single SQLite file.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store over the SQLite database at dbPath. Connections are
// opened lazily; the schema is initialized on first write.
func New(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, device radman.DeviceInfo, probe radman.ProbeInfo, standardID string, freqMHz *float64) (sessionID int64, err error) {
	deviceInfo, err := json.Marshal(device)
	if err != nil {
		return 0, fmt.Errorf("marshaling device info: %w", err)
	}
	probeInfo, err := json.Marshal(probe)
	if err != nil {
		return 0, fmt.Errorf("marshaling probe info: %w", err)
	}

	var standard sql.NullString
	if standardID != "" {
		standard = sql.NullString{String: standardID, Valid: true}
	}

	var frequency sql.NullFloat64
	if freqMHz != nil {
		frequency = sql.NullFloat64{Float64: *freqMHz, Valid: true}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return 0, fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx,
		device.ProductName,
		device.SerialNumber,
		probe.ProductName,
		probe.SerialNumber,
		standard,
		frequency,
		string(deviceInfo),
		string(probeInfo),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	sess, err := scanSession(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return sess, nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SqliteStore) StoreReadings(ctx context.Context, sessionID int64, readings []radhaz.Reading) (err error) {
	if len(readings) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]interface{}, 0, len(readings)*9)
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertReadingSQL)

	for i, r := range readings {
		values = append(values,
			sessionID,
			r.Timestamp.UTC(),
			r.EFieldPercent,
			r.HFieldPercent,
			toNullFloat64(r.EFieldVm),
			toNullFloat64(r.HFieldAm),
			r.EFieldOK,
			r.HFieldOK,
			r.BatteryPercent,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting readings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) Readings(ctx context.Context, sessionID int64, opts ...ReadingsOption) (readings []Reading, err error) {
	var q readingsQuery
	for _, opt := range opts {
		opt(&q)
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(selectReadingsSQL)

	args := []interface{}{sessionID}
	if q.from != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, q.from.UTC())
	}
	if q.to != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, q.to.UTC())
	}
	sb.WriteString(" ORDER BY timestamp, id")
	if q.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.limit)
	}

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r Reading
		var eField, hField sql.NullFloat64
		if err = rows.Scan(&r.ID, &r.SessionID, &r.Timestamp, &r.EFieldPercent, &r.HFieldPercent,
			&eField, &hField, &r.EFieldOK, &r.HFieldOK, &r.BatteryPercent); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		r.EFieldVm = fromNullFloat64(eField)
		r.HFieldAm = fromNullFloat64(hField)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *SqliteStore) ReadingStats(ctx context.Context, sessionID int64) (stats *ReadingStats, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	// MIN/MAX strip the declared column type, so timestamps come back as
	// text and are parsed here.
	var st ReadingStats
	var first, last sql.NullString
	if err = db.QueryRowContext(ctx, selectReadingStatsSQL, sessionID).
		Scan(&st.Count, &st.MaxEFieldPct, &st.MaxHFieldPct, &first, &last); err != nil {
		return nil, fmt.Errorf("scanning reading stats: %w", err)
	}
	if st.First, err = parseTimestamp(first); err != nil {
		return nil, fmt.Errorf("parsing first timestamp: %w", err)
	}
	if st.Last, err = parseTimestamp(last); err != nil {
		return nil, fmt.Errorf("parsing last timestamp: %w", err)
	}
	return &st, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var standard sql.NullString
	var frequency sql.NullFloat64
	var deviceInfo, probeInfo sql.NullString

	if err := row.Scan(&sess.ID, &sess.StartTime, &sess.DeviceProduct, &sess.DeviceSerial,
		&sess.ProbeProduct, &sess.ProbeSerial, &standard, &frequency, &deviceInfo, &probeInfo); err != nil {
		return nil, err
	}

	sess.StandardID = standard.String
	sess.FrequencyMHz = fromNullFloat64(frequency)
	sess.DeviceInfo = deviceInfo.String
	sess.ProbeInfo = probeInfo.String
	return &sess, nil
}
