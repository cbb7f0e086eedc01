// Package chat 聊天会话管理
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ashwinyue/rag-chat/internal/model"
	"github.com/ashwinyue/rag-chat/internal/repository"
	"github.com/ashwinyue/rag-chat/internal/service/types"
)

const (
	// MaxTitleLength 标题最大字符数
	MaxTitleLength = 200
	// MaxPreviewLength 预览最大字符数
	MaxPreviewLength = 400

	msgSessionNotFound = "Chat session not found."
)

// HistoryStore 会话历史存储
type HistoryStore interface {
	History(ctx context.Context, sessionID string) ([]types.Message, error)
	Append(ctx context.Context, sessionID string, msgs ...types.Message) error
	Clear(ctx context.Context, sessionID string) error
}

// Service 聊天会话服务
type Service struct {
	repo    repository.ChatRepository
	history HistoryStore
}

// NewService 创建聊天会话服务
func NewService(repo repository.ChatRepository, history HistoryStore) *Service {
	return &Service{repo: repo, history: history}
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Title   string `json:"title" binding:"required,min=1,max=200"`
	Preview string `json:"preview" binding:"max=400"`
}

// UpdateSessionRequest 更新会话请求
type UpdateSessionRequest struct {
	Title   *string `json:"title" binding:"omitempty,min=1,max=200"`
	Preview *string `json:"preview" binding:"omitempty,max=400"`
}

// ListSessionsResponse 会话列表响应
type ListSessionsResponse struct {
	Sessions []*model.ChatSession `json:"sessions"`
	Total    int64                `json:"total"`
}

// CreateSession 创建会话
func (s *Service) CreateSession(ctx context.Context, req *CreateSessionRequest) (*model.ChatSession, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, types.Wrap(types.ErrValidation, "Title is required.")
	}

	session := &model.ChatSession{
		ID:      uuid.New().String(),
		Title:   truncate(title, MaxTitleLength),
		Preview: truncate(req.Preview, MaxPreviewLength),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession 获取会话
func (s *Service) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	session, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, types.Wrap(types.ErrNotFound, msgSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListSessions 分页列出会话，最近更新的在前
func (s *Service) ListSessions(ctx context.Context, page, size int) (*ListSessionsResponse, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	sessions, total, err := s.repo.List(ctx, (page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*model.ChatSession{}
	}
	return &ListSessionsResponse{Sessions: sessions, Total: total}, nil
}

// UpdateSession 更新会话标题或预览
func (s *Service) UpdateSession(ctx context.Context, id string, req *UpdateSessionRequest) (*model.ChatSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title != "" {
			session.Title = truncate(title, MaxTitleLength)
		}
	}
	if req.Preview != nil {
		session.Preview = truncate(*req.Preview, MaxPreviewLength)
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return session, nil
}

// DeleteSession 删除会话及其历史
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return s.history.Clear(ctx, id)
}

// History 会话历史
func (s *Service) History(ctx context.Context, id string) ([]types.Message, error) {
	return s.history.History(ctx, id)
}

// RecordExchange 一轮问答结束后写入历史并刷新会话预览
func (s *Service) RecordExchange(ctx context.Context, id, question, answer string) error {
	err := s.history.Append(ctx, id,
		types.Message{Role: types.RoleUser, Content: question},
		types.Message{Role: types.RoleAssistant, Content: strings.TrimSpace(answer)},
	)
	if err != nil {
		return err
	}

	session, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		// 历史可以独立于持久化会话存在
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	session.Preview = truncate(strings.TrimSpace(answer), MaxPreviewLength)
	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// truncate 按字符截断
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
