package sqlite

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cyface-de/cyup/internal/domain"
)

// Registry implements ports.SessionRegistry on SQLite. Sessions and their
// event logs survive restarts.
type Registry struct {
	db *DB
}

// NewRegistry creates a registry on an open database.
func NewRegistry(db *DB) *Registry {
	return &Registry{db: db}
}

// Get loads the session and its event log.
func (r *Registry) Get(ctx context.Context, id uint64) (session domain.Session, found bool, err error) {
	err = r.db.with(ctx, func(conn *sqlite.Conn) error {
		session, found, err = getSession(conn, id)
		return err
	})
	return session, found, err
}

// Register upserts the session location. created_at and the event log of
// an existing entry are kept.
func (r *Registry) Register(ctx context.Context, s domain.Session) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return r.db.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO upload_sessions (measurement_id, location, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (measurement_id) DO UPDATE SET location = excluded.location`,
			&sqlitex.ExecOptions{Args: []any{int64(s.MeasurementID), s.Location, createdAt.UnixNano()}})
		if err != nil {
			return fmt.Errorf("sqlite: register session %d: %w", s.MeasurementID, err)
		}
		return nil
	})
}

// Remove deletes the session and its events in one transaction.
func (r *Registry) Remove(ctx context.Context, id uint64) error {
	return r.db.with(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("sqlite: begin transaction: %w", err)
		}
		defer endTransaction(&err)

		args := &sqlitex.ExecOptions{Args: []any{int64(id)}}
		if err = sqlitex.Execute(conn, `DELETE FROM upload_events WHERE measurement_id = ?`, args); err != nil {
			return fmt.Errorf("sqlite: remove events %d: %w", id, err)
		}
		if err = sqlitex.Execute(conn, `DELETE FROM upload_sessions WHERE measurement_id = ?`, args); err != nil {
			return fmt.Errorf("sqlite: remove session %d: %w", id, err)
		}
		return nil
	})
}

// Record appends an event. A missing session row is created so the log
// always belongs to a visible session.
func (r *Registry) Record(ctx context.Context, id uint64, e domain.Event) error {
	return r.db.with(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("sqlite: begin transaction: %w", err)
		}
		defer endTransaction(&err)

		err = sqlitex.Execute(conn, `
			INSERT OR IGNORE INTO upload_sessions (measurement_id, location, created_at)
			VALUES (?, '', ?)`,
			&sqlitex.ExecOptions{Args: []any{int64(id), time.Now().UnixNano()}})
		if err != nil {
			return fmt.Errorf("sqlite: ensure session %d: %w", id, err)
		}

		err = sqlitex.Execute(conn, `
			INSERT INTO upload_events (measurement_id, request_type, status_code, message, error, at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				int64(id), string(e.RequestType), e.StatusCode, e.Message, e.Error, e.Time.UnixNano(),
			}})
		if err != nil {
			return fmt.Errorf("sqlite: record event %d: %w", id, err)
		}
		return nil
	})
}

// List returns all sessions with their events ordered by measurement id.
func (r *Registry) List(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.with(ctx, func(conn *sqlite.Conn) error {
		var ids []uint64
		err := sqlitex.Execute(conn, `SELECT measurement_id FROM upload_sessions ORDER BY measurement_id`,
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, uint64(stmt.ColumnInt64(0)))
				return nil
			}})
		if err != nil {
			return fmt.Errorf("sqlite: list sessions: %w", err)
		}
		for _, id := range ids {
			s, ok, err := getSession(conn, id)
			if err != nil {
				return err
			}
			if ok {
				sessions = append(sessions, s)
			}
		}
		return nil
	})
	return sessions, err
}

func getSession(conn *sqlite.Conn, id uint64) (domain.Session, bool, error) {
	var (
		s     domain.Session
		found bool
	)
	err := sqlitex.Execute(conn, `
		SELECT location, created_at FROM upload_sessions WHERE measurement_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				s.MeasurementID = id
				s.Location = stmt.ColumnText(0)
				s.CreatedAt = time.Unix(0, stmt.ColumnInt64(1)).UTC()
				return nil
			},
		})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("sqlite: get session %d: %w", id, err)
	}
	if !found {
		return domain.Session{}, false, nil
	}

	err = sqlitex.Execute(conn, `
		SELECT request_type, status_code, message, error, at
		FROM upload_events WHERE measurement_id = ? ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{int64(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				s.Events = append(s.Events, domain.Event{
					RequestType: domain.RequestType(stmt.ColumnText(0)),
					StatusCode:  stmt.ColumnInt(1),
					Message:     stmt.ColumnText(2),
					Error:       stmt.ColumnText(3),
					Time:        time.Unix(0, stmt.ColumnInt64(4)).UTC(),
				})
				return nil
			},
		})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("sqlite: get events %d: %w", id, err)
	}
	return s, true, nil
}
