package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EpicMandM/station-booking/internal/models"
	_ "modernc.org/sqlite"
)

// Fixed width so that text comparison in SQL orders the same as time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dbPath, err := resolveDBPath(path)
	if err != nil {
		return nil, err
	}

	// Immediate transactions take the write lock up front, so the overlap check
	// and the write it guards see the same snapshot.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func resolveDBPath(path string) (string, error) {
	abs := filepath.Clean(path)
	if strings.HasSuffix(abs, ".db") {
		if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
			return "", err
		}
		return abs, nil
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return "", err
	}
	return filepath.Join(abs, "bookings.db"), nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS stations (id TEXT PRIMARY KEY, data BLOB NOT NULL);",
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			station_id TEXT NOT NULL,
			requester_id TEXT NOT NULL,
			state TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			version INTEGER NOT NULL,
			data BLOB NOT NULL);`,
		"CREATE INDEX IF NOT EXISTS idx_reservations_station_state ON reservations(station_id, state, start_time, end_time);",
		"CREATE INDEX IF NOT EXISTS idx_reservations_requester ON reservations(requester_id);",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetStation(ctx context.Context, id string) (*models.Station, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM stations WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st models.Station
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) SaveStation(ctx context.Context, st *models.Station) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO stations (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`, st.ID, data)
	return err
}

func (s *SQLiteStore) ListStations(ctx context.Context) ([]*models.Station, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM stations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var stations []*models.Station
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var st models.Station
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, err
		}
		stations = append(stations, &st)
	}
	return stations, rows.Err()
}

func (s *SQLiteStore) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM reservations WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeReservation(id, raw)
}

func (s *SQLiteStore) FindActiveByStation(ctx context.Context, stationID string) ([]*models.Reservation, error) {
	placeholders, states := activeStates()
	args := append([]any{stationID}, states...)
	return s.queryReservations(ctx,
		`SELECT id, data FROM reservations WHERE station_id = ? AND state IN (`+placeholders+`) ORDER BY start_time, id`,
		args...)
}

func (s *SQLiteStore) ListByRequester(ctx context.Context, requesterID string) ([]*models.Reservation, error) {
	return s.queryReservations(ctx, `SELECT id, data FROM reservations WHERE requester_id = ? ORDER BY start_time, id`, requesterID)
}

func (s *SQLiteStore) ListByStation(ctx context.Context, stationID string) ([]*models.Reservation, error) {
	return s.queryReservations(ctx, `SELECT id, data FROM reservations WHERE station_id = ? ORDER BY start_time, id`, stationID)
}

func (s *SQLiteStore) ListDue(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	instant := formatTime(now)
	return s.queryReservations(ctx,
		`SELECT id, data FROM reservations
		WHERE (state = ? AND start_time <= ?) OR (state = ? AND end_time <= ?)
		ORDER BY id`,
		string(models.StateAccepted), instant, string(models.StateInProgress), instant)
}

func (s *SQLiteStore) SaveReservation(ctx context.Context, r *models.Reservation) (*models.Reservation, error) {
	if r.ID == 0 {
		return s.insertReservation(ctx, r)
	}
	return s.updateReservation(ctx, r)
}

func (s *SQLiteStore) insertReservation(ctx context.Context, r *models.Reservation) (_ *models.Reservation, err error) {
	out := *r
	out.Version = 1
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	}()

	query := `INSERT INTO reservations (station_id, requester_id, state, start_time, end_time, version, data)
		SELECT ?, ?, ?, ?, ?, ?, ?`
	args := []any{out.StationID, out.RequesterID, string(out.State), formatTime(out.Start), formatTime(out.End), out.Version, data}
	if out.State.Active() {
		guard, guardArgs := overlapGuard(&out)
		query += ` WHERE ` + guard
		args = append(args, guardArgs...)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		err = ErrSlotTaken
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	out.ID = id
	return &out, nil
}

func (s *SQLiteStore) updateReservation(ctx context.Context, r *models.Reservation) (_ *models.Reservation, err error) {
	out := *r
	out.Version = r.Version + 1
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	}()

	query := `UPDATE reservations
		SET station_id = ?, requester_id = ?, state = ?, start_time = ?, end_time = ?, version = ?, data = ?
		WHERE id = ? AND version = ?`
	args := []any{out.StationID, out.RequesterID, string(out.State), formatTime(out.Start), formatTime(out.End), out.Version, data,
		r.ID, r.Version}
	if out.State.Active() {
		guard, guardArgs := overlapGuard(&out)
		query += ` AND ` + guard
		args = append(args, guardArgs...)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation %d: %w", r.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		var version int64
		err = tx.QueryRowContext(ctx, `SELECT version FROM reservations WHERE id = ?`, r.ID).Scan(&version)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = ErrNotFound
		case err != nil:
		case version != r.Version:
			err = ErrVersionConflict
		default:
			err = ErrSlotTaken
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

// overlapGuard is a condition that holds only while no other active
// reservation on r's station overlaps [r.Start, r.End).
func overlapGuard(r *models.Reservation) (string, []any) {
	placeholders, states := activeStates()
	cond := `NOT EXISTS (SELECT 1 FROM reservations AS other
		WHERE other.station_id = ? AND other.id <> ? AND other.state IN (` + placeholders + `)
		AND other.start_time < ? AND other.end_time > ?)`
	args := append([]any{r.StationID, r.ID}, states...)
	args = append(args, formatTime(r.End), formatTime(r.Start))
	return cond, args
}

func activeStates() (string, []any) {
	marks := make([]string, len(models.ActiveStates))
	args := make([]any, len(models.ActiveStates))
	for i, st := range models.ActiveStates {
		marks[i] = "?"
		args[i] = string(st)
	}
	return strings.Join(marks, ", "), args
}

func (s *SQLiteStore) queryReservations(ctx context.Context, query string, args ...any) ([]*models.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.Reservation
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		r, err := decodeReservation(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeReservation(id int64, raw []byte) (*models.Reservation, error) {
	var r models.Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	r.ID = id
	return &r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
