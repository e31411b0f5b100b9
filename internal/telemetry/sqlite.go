package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore persists readings in the readings table. Insertion order is
// tracked by the seq column, so FIFO eviction and pagination behave the same
// across restarts. Timestamps are stored twice: RFC 3339 text for fidelity
// and unix nanoseconds for range comparisons.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
}

// NewSQLiteStore creates a store bounded at capacity readings on top of an
// open SQLite connection. A capacity <= 0 falls back to DefaultCapacity.
func NewSQLiteStore(db *sql.DB, capacity int) *SQLiteStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SQLiteStore{db: db, capacity: capacity}
}

// Append inserts a reading, then deletes the oldest rows past capacity.
func (s *SQLiteStore) Append(ctx context.Context, r Reading) error {
	var deviceTS any
	if r.DeviceTS != nil {
		deviceTS = r.DeviceTS.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (
			id, device_id, sensor, temperature, humidity, device_ts,
			received_at, received_unix, client_addr,
			device_name, device_location, device_auto_registered
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DeviceID, r.Sensor, r.Temperature, r.Humidity, deviceTS,
		r.ReceivedAt.UTC().Format(time.RFC3339Nano), r.ReceivedAt.UnixNano(),
		r.ClientAddr,
		r.DeviceMeta.Name, r.DeviceMeta.Location, boolToInt(r.DeviceMeta.AutoRegistered),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM readings
		WHERE seq NOT IN (SELECT seq FROM readings ORDER BY seq DESC LIMIT ?)`,
		s.capacity,
	)
	if err != nil {
		return fmt.Errorf("evicting readings: %w", err)
	}
	return nil
}

// Query returns a filtered, paginated page of readings, newest first.
func (s *SQLiteStore) Query(ctx context.Context, params QueryParams) (QueryResult, error) {
	limit := normaliseLimit(params.Limit)
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if params.DeviceID != "" {
		where = "WHERE device_id = ?"
		args = append(args, params.DeviceID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings "+where, args...).Scan(&total); err != nil {
		return QueryResult{}, fmt.Errorf("counting readings: %w", err)
	}
	if offset > total {
		offset = total
	}

	query := fmt.Sprintf(`
		SELECT id, device_id, sensor, temperature, humidity, device_ts,
			received_at, client_addr,
			device_name, device_location, device_auto_registered
		FROM readings %s
		ORDER BY seq
		LIMIT ? OFFSET ?`, where)

	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var page []Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return QueryResult{}, err
		}
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("iterating readings: %w", err)
	}

	// Reverse so the newest reading in the page comes first.
	out := make([]Reading, len(page))
	for i, r := range page {
		out[len(page)-1-i] = r
	}

	return QueryResult{Readings: out, Total: total, Offset: offset, Limit: limit}, nil
}

// CleanupOlderThan removes readings received strictly before cutoff.
func (s *SQLiteStore) CleanupOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM readings WHERE received_unix < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cleaning up readings: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting removed readings: %w", err)
	}
	return int(removed), nil
}

// Size returns the number of stored readings.
func (s *SQLiteStore) Size(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting readings: %w", err)
	}
	return count, nil
}

// Latest returns the most recently appended reading, or nil when empty.
func (s *SQLiteStore) Latest(ctx context.Context) (*Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, sensor, temperature, humidity, device_ts,
			received_at, client_addr,
			device_name, device_location, device_auto_registered
		FROM readings
		ORDER BY seq DESC
		LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying latest reading: %w", err)
		}
		return nil, nil
	}

	r, err := scanReading(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountSince returns how many readings were received at or after since.
func (s *SQLiteStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM readings WHERE received_unix >= ?`, since.UnixNano()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting readings since: %w", err)
	}
	return count, nil
}

func scanReading(rows *sql.Rows) (Reading, error) {
	var (
		r              Reading
		deviceTS       sql.NullString
		receivedAt     string
		autoRegistered int
	)

	err := rows.Scan(&r.ID, &r.DeviceID, &r.Sensor, &r.Temperature, &r.Humidity,
		&deviceTS, &receivedAt, &r.ClientAddr,
		&r.DeviceMeta.Name, &r.DeviceMeta.Location, &autoRegistered)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reading{}, err
		}
		return Reading{}, fmt.Errorf("scanning reading: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return Reading{}, fmt.Errorf("parsing received_at: %w", err)
	}
	r.ReceivedAt = ts

	if deviceTS.Valid {
		dt, err := time.Parse(time.RFC3339Nano, deviceTS.String)
		if err != nil {
			return Reading{}, fmt.Errorf("parsing device_ts: %w", err)
		}
		r.DeviceTS = &dt
	}

	r.DeviceMeta.AutoRegistered = autoRegistered != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
