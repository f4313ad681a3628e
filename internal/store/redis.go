package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobsweep/backend/internal/domain"
)

// Redis persists state under keys prefixed with a namespace:
//
//	<prefix>:jobs:latest           job cache of the most recent session
//	<prefix>:progress:<id>         progress snapshot
//	<prefix>:progress              set of ids with a snapshot
//	<prefix>:session:<id>          finished session, expires with retention
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedisClient parses redisURL and verifies connectivity
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// NewRedis wraps a connected client
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "jobsweep"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// SaveJobs replaces the cached job list
func (r *Redis) SaveJobs(ctx context.Context, sessionID string, jobs []domain.JobRecord) error {
	data, err := json.Marshal(LatestJobs{SessionID: sessionID, Jobs: jobs, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}
	return r.client.Set(ctx, r.key("jobs", "latest"), data, 0).Err()
}

// ClearJobs drops the cached job list
func (r *Redis) ClearJobs(ctx context.Context) error {
	return r.client.Del(ctx, r.key("jobs", "latest")).Err()
}

// Latest returns the cached job list, or nil
func (r *Redis) Latest(ctx context.Context) (*LatestJobs, error) {
	data, err := r.client.Get(ctx, r.key("jobs", "latest")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var latest LatestJobs
	if err := json.Unmarshal(data, &latest); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	return &latest, nil
}

// SaveProgress stores a progress snapshot
func (r *Redis) SaveProgress(ctx context.Context, snap domain.ProgressSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("progress", snap.SessionID), data, 0)
		pipe.SAdd(ctx, r.key("progress"), snap.SessionID)
		return nil
	})
	return err
}

// LoadProgress returns all stored snapshots, pruning dangling index entries
func (r *Redis) LoadProgress(ctx context.Context) ([]domain.ProgressSnapshot, error) {
	ids, err := r.client.SMembers(ctx, r.key("progress")).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key("progress", id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var (
		out      []domain.ProgressSnapshot
		dangling []interface{}
	)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			dangling = append(dangling, ids[i])
			continue
		}
		var snap domain.ProgressSnapshot
		if err := json.Unmarshal([]byte(s), &snap); err != nil {
			dangling = append(dangling, ids[i])
			continue
		}
		out = append(out, snap)
	}
	if len(dangling) > 0 {
		r.client.SRem(ctx, r.key("progress"), dangling...)
	}
	return out, nil
}

// DeleteProgress removes a snapshot
func (r *Redis) DeleteProgress(ctx context.Context, sessionID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key("progress", sessionID))
		pipe.SRem(ctx, r.key("progress"), sessionID)
		return nil
	})
	return err
}

// SaveSession stores a finished session; Redis expires it after ttl
func (r *Redis) SaveSession(ctx context.Context, s *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return r.client.Set(ctx, r.key("session", s.ID), data, ttl).Err()
}

// LoadSession returns a finished session or domain.ErrSessionNotFound
func (r *Redis) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.key("session", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a finished session
func (r *Redis) DeleteSession(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key("session", id)).Err()
}

// Ping implements a readiness check
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
