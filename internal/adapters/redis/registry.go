// Package redis provides a session registry shared through Redis, so that
// several uploader instances on one device account see the same sessions.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyface-de/cyup/internal/domain"
)

const (
	fieldLocation  = "location"
	fieldCreatedAt = "created_at"

	defaultPrefix = "cyup"
)

// Registry implements ports.SessionRegistry on Redis.
//
// Layout per measurement:
//
//	{prefix}:session:{id}  hash  location, created_at (unix nanos)
//	{prefix}:events:{id}   list  JSON-encoded events in append order
//	{prefix}:sessions      set   registered ids
type Registry struct {
	client redis.UniversalClient
	prefix string
}

// NewRegistry creates a registry using client. An empty prefix selects "cyup".
func NewRegistry(client redis.UniversalClient, prefix string) *Registry {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Registry{client: client, prefix: prefix}
}

// NewClient connects to the Redis server described by url,
// e.g. "redis://localhost:6379/0".
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

func (r *Registry) sessionKey(id uint64) string {
	return r.prefix + ":session:" + strconv.FormatUint(id, 10)
}

func (r *Registry) eventsKey(id uint64) string {
	return r.prefix + ":events:" + strconv.FormatUint(id, 10)
}

func (r *Registry) indexKey() string {
	return r.prefix + ":sessions"
}

// Get loads the session and its event log.
func (r *Registry) Get(ctx context.Context, id uint64) (domain.Session, bool, error) {
	var (
		hash   *redis.MapStringStringCmd
		events *redis.StringSliceCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hash = pipe.HGetAll(ctx, r.sessionKey(id))
		events = pipe.LRange(ctx, r.eventsKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("redis: get session %d: %w", id, err)
	}

	fields := hash.Val()
	if len(fields) == 0 {
		return domain.Session{}, false, nil
	}

	s := domain.Session{MeasurementID: id, Location: fields[fieldLocation]}
	if raw, ok := fields[fieldCreatedAt]; ok {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Session{}, false, fmt.Errorf("redis: session %d created_at: %w", id, err)
		}
		s.CreatedAt = time.Unix(0, nanos).UTC()
	}
	for i, raw := range events.Val() {
		var e domain.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return domain.Session{}, false, fmt.Errorf("redis: session %d event %d: %w", id, i, err)
		}
		s.Events = append(s.Events, e)
	}
	return s, true, nil
}

// Register sets the session location. created_at and the event log of an
// existing entry are kept.
func (r *Registry) Register(ctx context.Context, s domain.Session) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	key := r.sessionKey(s.MeasurementID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldLocation, s.Location)
		pipe.HSetNX(ctx, key, fieldCreatedAt, strconv.FormatInt(createdAt.UnixNano(), 10))
		pipe.SAdd(ctx, r.indexKey(), s.MeasurementID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: register session %d: %w", s.MeasurementID, err)
	}
	return nil
}

// Remove deletes the session, its events and its index entry.
func (r *Registry) Remove(ctx context.Context, id uint64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(id), r.eventsKey(id))
		pipe.SRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: remove session %d: %w", id, err)
	}
	return nil
}

// Record appends an event, creating the session entry if missing.
func (r *Registry) Record(ctx context.Context, id uint64, e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis: encode event: %w", err)
	}
	key := r.sessionKey(id)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldLocation, "")
		pipe.HSetNX(ctx, key, fieldCreatedAt, strconv.FormatInt(time.Now().UnixNano(), 10))
		pipe.RPush(ctx, r.eventsKey(id), data)
		pipe.SAdd(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: record event %d: %w", id, err)
	}
	return nil
}

// List returns all registered sessions ordered by measurement id.
func (r *Registry) List(ctx context.Context) ([]domain.Session, error) {
	members, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: list sessions: %w", err)
	}

	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: bad session id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sessions := make([]domain.Session, 0, len(ids))
	for _, id := range ids {
		s, ok, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		// Removed between SMEMBERS and GET.
		if !ok {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
