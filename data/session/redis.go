package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/avoronin/dma_advisor_bot/config"
	"github.com/avoronin/dma_advisor_bot/internal/model"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func sessionKey(key string) string {
	return "session:" + key
}

func (s *RedisSession) GetSession(ctx context.Context, key string) (model.Session, error) {
	res, err := s.redis.Get(ctx, sessionKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, err
	}

	session := model.Session{}
	if err := json.Unmarshal([]byte(res), &session); err != nil {
		return model.Session{}, err
	}

	return session, nil
}

func (s *RedisSession) SetSession(ctx context.Context, key string, session model.Session) error {
	sessionJson, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.redis.Set(ctx, sessionKey(key), sessionJson, s.cfg.SessionExpiration).Err()
}
