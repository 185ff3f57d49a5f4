package sqlite

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cyface-de/cyup/internal/domain"
)

// Sensor kinds in the sensor_values table.
const (
	kindAcceleration = 0
	kindRotation     = 1
	kindDirection    = 2
)

// MeasurementStore implements ports.MeasurementStore and
// ports.MeasurementWriter on SQLite.
type MeasurementStore struct {
	db *DB
}

// NewMeasurementStore creates a store on an open database.
func NewMeasurementStore(db *DB) *MeasurementStore {
	return &MeasurementStore{db: db}
}

// Save replaces the measurement and all of its samples in one transaction.
func (s *MeasurementStore) Save(ctx context.Context, m domain.Measurement) error {
	return s.db.with(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("sqlite: begin transaction: %w", err)
		}
		defer endTransaction(&err)

		id := int64(m.ID)
		for _, table := range []string{"geo_locations", "altitudes", "sensor_values"} {
			q := "DELETE FROM " + table + " WHERE measurement_id = ?"
			if err = sqlitex.Execute(conn, q, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
				return fmt.Errorf("sqlite: clear %s for %d: %w", table, m.ID, err)
			}
		}

		err = sqlitex.Execute(conn, `
			INSERT INTO measurements (id, finished, synchronized, distance, modality, track_count)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				finished = excluded.finished,
				synchronized = excluded.synchronized,
				distance = excluded.distance,
				modality = excluded.modality,
				track_count = excluded.track_count`,
			&sqlitex.ExecOptions{Args: []any{
				id, m.Finished, m.Synchronized, m.Distance, m.Modality, len(m.Tracks),
			}})
		if err != nil {
			return fmt.Errorf("sqlite: save measurement %d: %w", m.ID, err)
		}

		for ti, track := range m.Tracks {
			if err = insertTrack(conn, id, ti, track); err != nil {
				return fmt.Errorf("sqlite: save track %d of %d: %w", ti, m.ID, err)
			}
		}
		return nil
	})
}

func insertTrack(conn *sqlite.Conn, id int64, track int, t domain.Track) error {
	for i, l := range t.Locations {
		err := sqlitex.Execute(conn, `
			INSERT INTO geo_locations (measurement_id, track, seq, ts, lat, lon, speed, accuracy)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				id, track, i, l.Timestamp, l.Latitude, l.Longitude, l.Speed, l.Accuracy,
			}})
		if err != nil {
			return err
		}
	}
	for i, a := range t.Altitudes {
		err := sqlitex.Execute(conn, `
			INSERT INTO altitudes (measurement_id, track, seq, ts, value) VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{id, track, i, a.Timestamp, a.Value}})
		if err != nil {
			return err
		}
	}
	sensors := []struct {
		kind   int
		values []domain.SensorValue
	}{
		{kindAcceleration, t.Accelerations},
		{kindRotation, t.Rotations},
		{kindDirection, t.Directions},
	}
	for _, sensor := range sensors {
		for i, v := range sensor.values {
			err := sqlitex.Execute(conn, `
				INSERT INTO sensor_values (measurement_id, track, kind, seq, ts, x, y, z)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{id, track, sensor.kind, i, v.Timestamp, v.X, v.Y, v.Z}})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads the measurement with all tracks.
func (s *MeasurementStore) Load(ctx context.Context, id uint64) (domain.Measurement, error) {
	var m domain.Measurement
	err := s.db.with(ctx, func(conn *sqlite.Conn) error {
		found := false
		trackCount := 0
		err := sqlitex.Execute(conn, `
			SELECT finished, synchronized, distance, modality, track_count
			FROM measurements WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{int64(id)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					m.ID = id
					m.Finished = stmt.ColumnBool(0)
					m.Synchronized = stmt.ColumnBool(1)
					m.Distance = stmt.ColumnFloat(2)
					m.Modality = stmt.ColumnText(3)
					trackCount = stmt.ColumnInt(4)
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("sqlite: load measurement %d: %w", id, err)
		}
		if !found {
			return fmt.Errorf("measurement %d: %w", id, domain.ErrMeasurementNotFound)
		}

		m.Tracks = make([]domain.Track, trackCount)
		track := func(i int) (*domain.Track, error) {
			if i < 0 || i >= len(m.Tracks) {
				return nil, fmt.Errorf("sqlite: measurement %d references track %d of %d", id, i, len(m.Tracks))
			}
			return &m.Tracks[i], nil
		}

		err = sqlitex.Execute(conn, `
			SELECT track, ts, lat, lon, speed, accuracy FROM geo_locations
			WHERE measurement_id = ? ORDER BY track, seq`,
			&sqlitex.ExecOptions{
				Args: []any{int64(id)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					t, err := track(stmt.ColumnInt(0))
					if err != nil {
						return err
					}
					t.Locations = append(t.Locations, domain.GeoLocation{
						Timestamp: stmt.ColumnInt64(1),
						Latitude:  stmt.ColumnFloat(2),
						Longitude: stmt.ColumnFloat(3),
						Speed:     stmt.ColumnFloat(4),
						Accuracy:  stmt.ColumnFloat(5),
					})
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("sqlite: load locations %d: %w", id, err)
		}

		err = sqlitex.Execute(conn, `
			SELECT track, ts, value FROM altitudes
			WHERE measurement_id = ? ORDER BY track, seq`,
			&sqlitex.ExecOptions{
				Args: []any{int64(id)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					t, err := track(stmt.ColumnInt(0))
					if err != nil {
						return err
					}
					t.Altitudes = append(t.Altitudes, domain.Altitude{
						Timestamp: stmt.ColumnInt64(1),
						Value:     stmt.ColumnFloat(2),
					})
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("sqlite: load altitudes %d: %w", id, err)
		}

		err = sqlitex.Execute(conn, `
			SELECT track, kind, ts, x, y, z FROM sensor_values
			WHERE measurement_id = ? ORDER BY track, kind, seq`,
			&sqlitex.ExecOptions{
				Args: []any{int64(id)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					t, err := track(stmt.ColumnInt(0))
					if err != nil {
						return err
					}
					v := domain.SensorValue{
						Timestamp: stmt.ColumnInt64(2),
						X:         stmt.ColumnFloat(3),
						Y:         stmt.ColumnFloat(4),
						Z:         stmt.ColumnFloat(5),
					}
					switch stmt.ColumnInt(1) {
					case kindAcceleration:
						t.Accelerations = append(t.Accelerations, v)
					case kindRotation:
						t.Rotations = append(t.Rotations, v)
					case kindDirection:
						t.Directions = append(t.Directions, v)
					}
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("sqlite: load sensor values %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return domain.Measurement{}, err
	}
	return m, nil
}

// ListUnsynchronized returns finished measurements not yet uploaded, by id.
func (s *MeasurementStore) ListUnsynchronized(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := s.db.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT id FROM measurements WHERE finished = 1 AND synchronized = 0 ORDER BY id`,
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, uint64(stmt.ColumnInt64(0)))
				return nil
			}})
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list unsynchronized: %w", err)
	}
	return ids, nil
}

// MarkSynchronized flags the measurement as uploaded.
func (s *MeasurementStore) MarkSynchronized(ctx context.Context, id uint64) error {
	return s.db.with(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `UPDATE measurements SET synchronized = 1 WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{int64(id)}})
		if err != nil {
			return fmt.Errorf("sqlite: mark synchronized %d: %w", id, err)
		}
		if conn.Changes() == 0 {
			return fmt.Errorf("measurement %d: %w", id, domain.ErrMeasurementNotFound)
		}
		return nil
	})
}
