package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/app"
	"github.com/dkeye/SoundSync/internal/config"
	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

const (
	roomKeyPrefix = "soundsync:room:"
	EventStream   = "soundsync:events"
	streamMaxLen  = 10000
)

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// RedisStore keeps one JSON record per room, readable by any process that
// shares the Redis instance.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func roomKey(id domain.RoomID) string {
	return roomKeyPrefix + string(id)
}

func (s *RedisStore) SaveRoom(ctx context.Context, r *domain.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", r.ID, err)
	}
	if err := s.client.Set(ctx, roomKey(r.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	return nil
}

func (s *RedisStore) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	if err := s.client.Del(ctx, roomKey(id)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) LoadRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", id, err)
	}
	var r domain.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &r, nil
}

// PublishEvent appends ev to the event stream as {type, room_id, data,
// timestamp}.
func (s *RedisStore) PublishEvent(ctx context.Context, ev core.Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: EventStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      string(ev.Type),
			"room_id":   string(ev.RoomID),
			"data":      string(data),
			"timestamp": ev.At.Unix(),
		},
	}).Result()
}

var _ core.RoomStore = (*RedisStore)(nil)

// MirrorEvents copies every published event into the Redis stream until ctx
// is done. A subscription dropped for lagging is replaced.
func (s *RedisStore) MirrorEvents(ctx context.Context, events *app.Broker) error {
	for {
		sub := events.SubscribeAll()
		if err := s.drain(ctx, sub); err != nil {
			events.Unsubscribe(sub)
			return err
		}
		log.Warn().Str("module", "adapters.store").Msg("event mirror lagged, resubscribing")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (s *RedisStore) drain(ctx context.Context, sub *app.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if _, err := s.PublishEvent(ctx, ev); err != nil {
				log.Error().Err(err).Str("module", "adapters.store").Str("room_id", string(ev.RoomID)).Str("type", string(ev.Type)).Msg("event mirror write failed")
			}
		}
	}
}
