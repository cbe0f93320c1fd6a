package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pontipilat22/logcompany1/internal/shared/config"
)

// ErrSessionNotFound — активной сессии у пользователя нет
var ErrSessionNotFound = errors.New("session not found")

// Session — текущая сессия пользователя (single session policy:
// один пользователь — одно активное устройство)
type Session struct {
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
}

// Store хранит сессии в Redis под ключом session:<userID>
type Store struct {
	client *redis.Client
}

// NewStore создает подключение к Redis и проверяет его
func NewStore(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

func sessionKey(userID string) string {
	return "session:" + userID
}

// Set сохраняет сессию пользователя, вытесняя предыдущую
func (s *Store) Set(ctx context.Context, userID string, sess Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Get возвращает текущую сессию пользователя
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete удаляет сессию (logout)
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close закрывает подключение к Redis
func (s *Store) Close() error {
	return s.client.Close()
}
