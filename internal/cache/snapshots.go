package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SnapshotTTL bounds how stale a cached snapshot can get even if an
// invalidation is lost (process crash between commit and Invalidate).
const SnapshotTTL = 30 * time.Second

// Snapshots caches the serialized message list per room. The snapshot
// endpoint is the hottest read in the system — every client fetches it on
// each room open — while mutations are comparatively rare, so cache the
// JSON bytes and invalidate on every create/update/delete.
//
// Cache failures are never surfaced to callers as request errors: a miss
// and a broken Redis look the same (ok=false) and the handler falls through
// to Postgres.
type Snapshots struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewSnapshots(redisURL string, logger *zap.Logger) (*Snapshots, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Snapshots{rdb: redis.NewClient(opts), logger: logger}, nil
}

func (s *Snapshots) Close() error {
	return s.rdb.Close()
}

func key(roomID uuid.UUID) string {
	return "room:" + roomID.String() + ":snapshot"
}

// Get returns the cached snapshot bytes for a room, if present.
func (s *Snapshots) Get(ctx context.Context, roomID uuid.UUID) ([]byte, bool) {
	data, err := s.rdb.Get(ctx, key(roomID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("snapshot cache read failed",
				zap.String("room_id", roomID.String()), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores the serialized snapshot. Best effort.
func (s *Snapshots) Set(ctx context.Context, roomID uuid.UUID, data []byte) {
	if err := s.rdb.Set(ctx, key(roomID), data, SnapshotTTL).Err(); err != nil {
		s.logger.Warn("snapshot cache write failed",
			zap.String("room_id", roomID.String()), zap.Error(err))
	}
}

// Invalidate drops the cached snapshot after a mutation so the next reader
// sees the new state immediately instead of waiting out the TTL.
func (s *Snapshots) Invalidate(ctx context.Context, roomID uuid.UUID) {
	if err := s.rdb.Del(ctx, key(roomID)).Err(); err != nil {
		s.logger.Warn("snapshot cache invalidate failed",
			zap.String("room_id", roomID.String()), zap.Error(err))
	}
}
