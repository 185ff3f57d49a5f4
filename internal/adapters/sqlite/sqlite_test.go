package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cyface-de/cyup/internal/adapters/registrytest"
	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
	"github.com/cyface-de/cyup/pkg/log"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(Config{Path: path, PoolSize: 4, Logger: log.NewNoopLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRegistry(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) ports.SessionRegistry {
		return NewRegistry(openTestDB(t, filepath.Join(t.TempDir(), "cyup.db")))
	})
}

func TestOpen_Validation(t *testing.T) {
	if _, err := Open(Config{Logger: log.NewNoopLogger()}); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := Open(Config{Path: filepath.Join(t.TempDir(), "x.db")}); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestRegistry_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cyup.db")

	db, err := Open(Config{Path: path, Logger: log.NewNoopLogger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r := NewRegistry(db)
	session := domain.NewSession(42)
	session.Location = "https://collector/measurements/42"
	if err := r.Register(ctx, session); err != nil {
		t.Fatalf("Register: %v", err)
	}
	event := domain.Event{
		RequestType: domain.RequestPreRequest,
		StatusCode:  200,
		Time:        time.Unix(1700000000, 0).UTC(),
	}
	if err := r.Record(ctx, 42, event); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r = NewRegistry(openTestDB(t, path))
	s, ok, err := r.Get(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if s.Location != "https://collector/measurements/42" {
		t.Errorf("Location = %q", s.Location)
	}
	if len(s.Events) != 1 || !s.Events[0].Time.Equal(event.Time) || s.Events[0].StatusCode != 200 {
		t.Errorf("Events = %+v", s.Events)
	}
}

func sampleMeasurement(id uint64) domain.Measurement {
	return domain.Measurement{
		ID:       id,
		Finished: true,
		Distance: 1234.5,
		Modality: "BICYCLE",
		Tracks: []domain.Track{
			{
				Locations: []domain.GeoLocation{
					{Timestamp: 1000, Latitude: 51.05, Longitude: 13.73, Speed: 4.2, Accuracy: 5.5},
					{Timestamp: 2000, Latitude: 51.06, Longitude: 13.74, Speed: 4.4, Accuracy: 3.0},
				},
				Altitudes:     []domain.Altitude{{Timestamp: 1000, Value: 112.5}},
				Accelerations: []domain.SensorValue{{Timestamp: 1001, X: 0.1, Y: 0.2, Z: 9.81}},
				Rotations:     []domain.SensorValue{{Timestamp: 1002, X: 1, Y: 2, Z: 3}},
			},
			{},
			{
				Locations:  []domain.GeoLocation{{Timestamp: 9000, Latitude: 51.1, Longitude: 13.8}},
				Directions: []domain.SensorValue{{Timestamp: 9001, X: -1, Y: -2, Z: -3}},
			},
		},
	}
}

func TestMeasurementStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMeasurementStore(openTestDB(t, filepath.Join(t.TempDir(), "cyup.db")))

	want := sampleMeasurement(7)
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.ID != want.ID || got.Finished != want.Finished || got.Distance != want.Distance || got.Modality != want.Modality {
		t.Errorf("header = %+v", got)
	}
	if len(got.Tracks) != 3 {
		t.Fatalf("len(Tracks) = %d, want 3", len(got.Tracks))
	}
	if !reflect.DeepEqual(got.Tracks[0].Locations, want.Tracks[0].Locations) {
		t.Errorf("locations = %+v", got.Tracks[0].Locations)
	}
	if !reflect.DeepEqual(got.Tracks[0].Altitudes, want.Tracks[0].Altitudes) {
		t.Errorf("altitudes = %+v", got.Tracks[0].Altitudes)
	}
	if !reflect.DeepEqual(got.Tracks[0].Accelerations, want.Tracks[0].Accelerations) {
		t.Errorf("accelerations = %+v", got.Tracks[0].Accelerations)
	}
	if !reflect.DeepEqual(got.Tracks[0].Rotations, want.Tracks[0].Rotations) {
		t.Errorf("rotations = %+v", got.Tracks[0].Rotations)
	}
	if got.Tracks[1].Locations != nil {
		t.Errorf("empty track got locations %+v", got.Tracks[1].Locations)
	}
	if !reflect.DeepEqual(got.Tracks[2].Directions, want.Tracks[2].Directions) {
		t.Errorf("directions = %+v", got.Tracks[2].Directions)
	}
	if got.LocationCount() != 3 {
		t.Errorf("LocationCount = %d, want 3", got.LocationCount())
	}
}

func TestMeasurementStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMeasurementStore(openTestDB(t, filepath.Join(t.TempDir(), "cyup.db")))

	if err := store.Save(ctx, sampleMeasurement(7)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	smaller := domain.Measurement{ID: 7, Finished: true, Tracks: []domain.Track{{
		Locations: []domain.GeoLocation{{Timestamp: 1, Latitude: 1, Longitude: 1}},
	}}}
	if err := store.Save(ctx, smaller); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, 7)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Tracks) != 1 || got.LocationCount() != 1 || got.AccelerationCount() != 0 {
		t.Errorf("got %d tracks, %d locations, %d accelerations",
			len(got.Tracks), got.LocationCount(), got.AccelerationCount())
	}
}

func TestMeasurementStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMeasurementStore(openTestDB(t, filepath.Join(t.TempDir(), "cyup.db")))

	if _, err := store.Load(ctx, 99); !errors.Is(err, domain.ErrMeasurementNotFound) {
		t.Errorf("Load error = %v, want ErrMeasurementNotFound", err)
	}
	if err := store.MarkSynchronized(ctx, 99); !errors.Is(err, domain.ErrMeasurementNotFound) {
		t.Errorf("MarkSynchronized error = %v, want ErrMeasurementNotFound", err)
	}
}

func TestMeasurementStore_Unsynchronized(t *testing.T) {
	ctx := context.Background()
	store := NewMeasurementStore(openTestDB(t, filepath.Join(t.TempDir(), "cyup.db")))

	open := sampleMeasurement(3)
	open.Finished = false
	for _, m := range []domain.Measurement{sampleMeasurement(5), open, sampleMeasurement(1)} {
		if err := store.Save(ctx, m); err != nil {
			t.Fatalf("Save %d: %v", m.ID, err)
		}
	}

	ids, err := store.ListUnsynchronized(ctx)
	if err != nil {
		t.Fatalf("ListUnsynchronized: %v", err)
	}
	if !reflect.DeepEqual(ids, []uint64{1, 5}) {
		t.Errorf("ids = %v, want [1 5]", ids)
	}

	if err := store.MarkSynchronized(ctx, 1); err != nil {
		t.Fatalf("MarkSynchronized: %v", err)
	}
	ids, _ = store.ListUnsynchronized(ctx)
	if !reflect.DeepEqual(ids, []uint64{5}) {
		t.Errorf("ids after mark = %v, want [5]", ids)
	}
	m, _ := store.Load(ctx, 1)
	if !m.Synchronized {
		t.Error("measurement 1 not synchronized")
	}
}
