// Package session 聊天会话的历史消息
// 配置了 Redis 时持久化到 Redis（24 小时过期），否则只保存在内存
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/rag-chat/internal/service/types"
)

const (
	// 历史在 Redis 中的过期时间
	historyTTL = 24 * time.Hour
	// Redis key 前缀
	historyKeyPrefix = "chat_history:"
	// MaxMessages 每个会话保留的最近消息条数
	MaxMessages = 50
)

// Store 会话历史存储
type Store struct {
	mu     sync.RWMutex
	memory map[string][]types.Message
	redis  *redis.Client
}

// historyData Redis 中保存的结构
type historyData struct {
	Messages  []types.Message `json:"messages"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewStore 创建历史存储，redisClient 可以为 nil
func NewStore(redisClient *redis.Client) *Store {
	return &Store{
		memory: make(map[string][]types.Message),
		redis:  redisClient,
	}
}

// History 返回会话历史，会话不存在时返回空切片
func (s *Store) History(ctx context.Context, sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	msgs, ok := s.memory[sessionID]
	s.mu.RUnlock()
	if ok {
		return cloneMessages(msgs), nil
	}

	if s.redis == nil {
		return []types.Message{}, nil
	}

	msgs, err := s.loadFromRedis(ctx, sessionID)
	if err != nil {
		log.Printf("Warning: failed to load chat history from redis: %v", err)
		return []types.Message{}, nil
	}

	s.mu.Lock()
	if _, ok := s.memory[sessionID]; !ok {
		s.memory[sessionID] = msgs
	}
	s.mu.Unlock()
	return cloneMessages(msgs), nil
}

// Append 追加消息，只保留最近 MaxMessages 条
func (s *Store) Append(ctx context.Context, sessionID string, msgs ...types.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	current, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if cached, ok := s.memory[sessionID]; ok {
		current = cloneMessages(cached)
	}
	current = append(current, msgs...)
	if len(current) > MaxMessages {
		current = current[len(current)-MaxMessages:]
	}
	s.memory[sessionID] = current
	snapshot := cloneMessages(current)
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.saveToRedis(ctx, sessionID, snapshot); err != nil {
			log.Printf("Warning: failed to save chat history to redis: %v", err)
		}
	}
	return nil
}

// Clear 清空会话历史
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.memory, sessionID)
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Del(ctx, historyKey(sessionID)).Err(); err != nil {
			log.Printf("Warning: failed to delete chat history from redis: %v", err)
		}
	}
	return nil
}

func (s *Store) loadFromRedis(ctx context.Context, sessionID string) ([]types.Message, error) {
	data, err := s.redis.Get(ctx, historyKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []types.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeHistory(data)
}

func (s *Store) saveToRedis(ctx context.Context, sessionID string, msgs []types.Message) error {
	data, err := encodeHistory(msgs, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, historyKey(sessionID), data, historyTTL).Err()
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}

func encodeHistory(msgs []types.Message, now time.Time) ([]byte, error) {
	data, err := json.Marshal(historyData{Messages: msgs, UpdatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}

func decodeHistory(data []byte) ([]types.Message, error) {
	var hd historyData
	if err := json.Unmarshal(data, &hd); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if hd.Messages == nil {
		return []types.Message{}, nil
	}
	return hd.Messages, nil
}

func cloneMessages(msgs []types.Message) []types.Message {
	return append(make([]types.Message, 0, len(msgs)), msgs...)
}
