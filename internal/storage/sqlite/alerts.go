package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/overhead/pkg/logger"
	_ "modernc.org/sqlite"
)

// AlertRecord is one dispatched alert as kept in the journal
type AlertRecord struct {
	ID           int64
	FlightID     string
	Ident        string
	Registration string
	AircraftType string
	Origin       string
	Destination  string
	Lat          float64
	Lon          float64
	Altitude     *float64
	Speed        *float64
	Heading      *float64
	DistanceNM   float64
	BearingDeg   float64
	Direction    string
	Display      string
	Speech       string
	ObservedAt   time.Time
	CreatedAt    time.Time
}

// AlertStorage is an append-only SQLite journal of alerts. It is never read
// back into the tracking engine.
type AlertStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAlertStorage opens (creating if needed) the journal at dbPath
func NewAlertStorage(dbPath string, log *logger.Logger) (*AlertStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite alert journal",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initAlertSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &AlertStorage{db: db, logger: storageLogger}, nil
}

func initAlertSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flight_id TEXT NOT NULL,
			ident TEXT,
			registration TEXT,
			aircraft_type TEXT,
			origin TEXT,
			destination TEXT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			altitude REAL,
			speed REAL,
			heading REAL,
			distance_nm REAL NOT NULL,
			bearing_deg REAL NOT NULL,
			direction TEXT,
			display TEXT,
			speech TEXT,
			observed_at INTEGER NOT NULL, -- unix seconds of the position
			created_at INTEGER NOT NULL   -- unix milliseconds of the insert
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_alerts_flight ON alerts(flight_id, observed_at)`)
	if err != nil {
		return fmt.Errorf("failed to create alerts index: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *AlertStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Insert appends an alert and returns its row id
func (s *AlertStorage) Insert(ctx context.Context, rec *AlertRecord) (int64, error) {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			flight_id, ident, registration, aircraft_type, origin, destination,
			lat, lon, altitude, speed, heading,
			distance_nm, bearing_deg, direction, display, speech,
			observed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FlightID, rec.Ident, rec.Registration, rec.AircraftType, rec.Origin, rec.Destination,
		rec.Lat, rec.Lon, nullFloat(rec.Altitude), nullFloat(rec.Speed), nullFloat(rec.Heading),
		rec.DistanceNM, rec.BearingDeg, rec.Direction, rec.Display, rec.Speech,
		rec.ObservedAt.Unix(), createdAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read alert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// Recent returns up to limit alerts, newest first
func (s *AlertStorage) Recent(ctx context.Context, limit int) ([]*AlertRecord, error) {
	return s.query(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY id DESC LIMIT ?`, limit)
}

// ByFlight returns up to limit alerts for one flight, newest first
func (s *AlertStorage) ByFlight(ctx context.Context, flightID string, limit int) ([]*AlertRecord, error) {
	return s.query(ctx, `SELECT `+alertColumns+` FROM alerts WHERE flight_id = ? ORDER BY id DESC LIMIT ?`, flightID, limit)
}

// Count returns the number of journaled alerts
func (s *AlertStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// Prune deletes alerts observed before cutoff and returns how many were removed
func (s *AlertStorage) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE observed_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("Pruned alert journal", logger.Int64("deleted", n))
	}
	return n, nil
}

const alertColumns = `id, flight_id, ident, registration, aircraft_type, origin, destination,
	lat, lon, altitude, speed, heading, distance_nm, bearing_deg, direction, display, speech,
	observed_at, created_at`

func (s *AlertStorage) query(ctx context.Context, q string, args ...any) ([]*AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []*AlertRecord
	for rows.Next() {
		var (
			rec                   AlertRecord
			alt, speed, heading   sql.NullFloat64
			observedAt, createdAt int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.FlightID, &rec.Ident, &rec.Registration, &rec.AircraftType, &rec.Origin, &rec.Destination,
			&rec.Lat, &rec.Lon, &alt, &speed, &heading, &rec.DistanceNM, &rec.BearingDeg, &rec.Direction,
			&rec.Display, &rec.Speech, &observedAt, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		rec.Altitude = floatPtr(alt)
		rec.Speed = floatPtr(speed)
		rec.Heading = floatPtr(heading)
		rec.ObservedAt = time.Unix(observedAt, 0).UTC()
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return out, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
