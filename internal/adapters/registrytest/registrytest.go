// Package registrytest holds the behaviour every ports.SessionRegistry
// implementation must show. Adapters run it from their own tests.
package registrytest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
)

// Run executes the registry behaviour suite. newRegistry must return an
// empty registry for every call.
func Run(t *testing.T, newRegistry func(t *testing.T) ports.SessionRegistry) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, r ports.SessionRegistry)
	}{
		{"get missing", testGetMissing},
		{"register and get", testRegisterAndGet},
		{"register overwrites", testRegisterOverwrites},
		{"remove", testRemove},
		{"remove missing", testRemoveMissing},
		{"record keeps order", testRecordOrder},
		{"record creates log", testRecordCreatesLog},
		{"list", testList},
		{"concurrent register", testConcurrentRegister},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newRegistry(t))
		})
	}
}

func testGetMissing(t *testing.T, r ports.SessionRegistry) {
	_, ok, err := r.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() found a session in an empty registry")
	}
}

func testRegisterAndGet(t *testing.T, r ports.SessionRegistry) {
	ctx := context.Background()
	s := domain.NewSession(7)
	s.Location = "https://collector.example.org/upload/7"

	if err := r.Register(ctx, s); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok, err := r.Get(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want session", ok, err)
	}
	if got.MeasurementID != 7 || got.Location != s.Location {
		t.Errorf("Get() = %+v, want id 7 with location %q", got, s.Location)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}
}

func testRegisterOverwrites(t *testing.T, r ports.SessionRegistry) {
	ctx := context.Background()
	s := domain.NewSession(3)
	s.Location = "first"
	if err := r.Register(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(ctx, 3, event(domain.RequestPreRequest, 200)); err != nil {
		t.Fatal(err)
	}

	s.Location = "second"
	if err := r.Register(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(ctx, s); err != nil {
		t.Fatal(err)
	}

	got, ok, err := r.Get(ctx, 3)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Location != "second" {
		t.Errorf("Location = %q, want second", got.Location)
	}
	if len(got.Events) != 1 {
		t.Errorf("events = %d, want 1 kept across registration", len(got.Events))
	}

	all, err := r.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("List() = %d sessions, want 1", len(all))
	}
}

func testRemove(t *testing.T, r ports.SessionRegistry) {
	ctx := context.Background()
	if err := r.Register(ctx, domain.NewSession(5)); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(ctx, 5, event(domain.RequestUpload, 500)); err != nil {
		t.Fatal(err)
	}
	if err := r.Remove(ctx, 5); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, ok, _ := r.Get(ctx, 5); ok {
		t.Fatal("session still registered after Remove")
	}

	// A new session for the same id starts with an empty log.
	if err := r.Register(ctx, domain.NewSession(5)); err != nil {
		t.Fatal(err)
	}
	got, _, _ := r.Get(ctx, 5)
	if len(got.Events) != 0 {
		t.Errorf("events = %d after re-register, want 0", len(got.Events))
	}
}

func testRemoveMissing(t *testing.T, r ports.SessionRegistry) {
	if err := r.Remove(context.Background(), 99); err != nil {
		t.Errorf("Remove() of unknown id error = %v", err)
	}
}

func testRecordOrder(t *testing.T, r ports.SessionRegistry) {
	ctx := context.Background()
	if err := r.Register(ctx, domain.NewSession(11)); err != nil {
		t.Fatal(err)
	}

	want := []domain.Event{
		event(domain.RequestPreRequest, 200),
		event(domain.RequestUpload, 500),
		{RequestType: domain.RequestStatusCheck, Error: "connection reset", Time: time.Unix(1700000000, 0).UTC()},
		event(domain.RequestUpload, 201),
	}
	for _, e := range want {
		if err := r.Record(ctx, 11, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, _, err := r.Get(ctx, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != len(want) {
		t.Fatalf("events = %d, want %d", len(got.Events), len(want))
	}
	for i := range want {
		g, w := got.Events[i], want[i]
		if g.RequestType != w.RequestType || g.StatusCode != w.StatusCode || g.Error != w.Error || g.Message != w.Message {
			t.Errorf("event[%d] = %+v, want %+v", i, g, w)
		}
		if !g.Time.Equal(w.Time) {
			t.Errorf("event[%d].Time = %v, want %v", i, g.Time, w.Time)
		}
	}
}

func testRecordCreatesLog(t *testing.T, r ports.SessionRegistry) {
	ctx := context.Background()
	if err := r.Record(ctx, 21, event(domain.RequestPreRequest, 503)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	got, ok, err := r.Get(ctx, 21)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want session created by Record", ok, err)
	}
	if len(got.Events) != 1 || got.Events[0].StatusCode != 503 {
		t.Errorf("events = %+v", got.Events)
	}
}

func testList(t *testing.T, r ports.SessionRegistry) {
	ctx := context.Background()
	for _, id := range []uint64{30, 10, 20} {
		if err := r.Register(ctx, domain.NewSession(id)); err != nil {
			t.Fatal(err)
		}
	}
	all, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() = %d sessions, want 3", len(all))
	}
	for i, want := range []uint64{10, 20, 30} {
		if all[i].MeasurementID != want {
			t.Errorf("List()[%d] = %d, want %d", i, all[i].MeasurementID, want)
		}
	}
}

func testConcurrentRegister(t *testing.T, r ports.SessionRegistry) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := domain.NewSession(77)
			if err := r.Register(ctx, s); err != nil {
				t.Errorf("Register() error = %v", err)
			}
			if err := r.Record(ctx, 77, event(domain.RequestUpload, 500)); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := r.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("List() = %d sessions, want exactly 1", len(all))
	}
	if len(all[0].Events) != 16 {
		t.Errorf("events = %d, want 16", len(all[0].Events))
	}
}

func event(rt domain.RequestType, status int) domain.Event {
	return domain.Event{
		RequestType: rt,
		StatusCode:  status,
		Message:     "test",
		Time:        time.Unix(1700000000, 0).UTC(),
	}
}
