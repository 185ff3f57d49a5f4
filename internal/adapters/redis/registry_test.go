package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cyface-de/cyup/internal/adapters/registrytest"
	"github.com/cyface-de/cyup/internal/domain"
	"github.com/cyface-de/cyup/internal/ports"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return s, client
}

func TestRegistry(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) ports.SessionRegistry {
		_, client := newTestClient(t)
		return NewRegistry(client, "")
	})
}

func TestRegistry_Layout(t *testing.T) {
	ctx := context.Background()
	s, client := newTestClient(t)
	r := NewRegistry(client, "test")

	session := domain.NewSession(42)
	session.Location = "https://collector/measurements/42"
	if err := r.Register(ctx, session); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Record(ctx, 42, domain.Event{RequestType: domain.RequestUpload, StatusCode: 308}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if got := s.HGet("test:session:42", fieldLocation); got != session.Location {
		t.Errorf("location field = %q", got)
	}
	events, err := s.List("test:events:42")
	if err != nil || len(events) != 1 {
		t.Errorf("events list = %v, %v", events, err)
	}
	if ok, _ := s.SIsMember("test:sessions", "42"); !ok {
		t.Error("id not indexed")
	}

	if err := r.Remove(ctx, 42); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Exists("test:session:42") || s.Exists("test:events:42") {
		t.Error("keys left after Remove")
	}
}

func TestRegistry_ServerDown(t *testing.T) {
	s, client := newTestClient(t)
	r := NewRegistry(client, "")
	s.Close()

	if _, _, err := r.Get(context.Background(), 1); err == nil {
		t.Error("expected error with server down")
	}
	if err := r.Record(context.Background(), 1, domain.Event{}); err == nil {
		t.Error("expected error with server down")
	}
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(context.Background(), "not a url"); err == nil {
		t.Error("expected error for bad url")
	}
}
