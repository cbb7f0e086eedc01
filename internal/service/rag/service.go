// Package rag 基于检索结果的流式问答
package rag

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/ashwinyue/rag-chat/internal/service/llm"
	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/ashwinyue/rag-chat/internal/service/vectorstore"
	"github.com/cloudwego/eino/schema"
)

// 固定的引导文案
const (
	GuidanceNoSources    = "I do not have any sources connected yet. Please add your documents in Data Management so I can answer using your content."
	GuidanceSourcesError = "I could not access your knowledge sources right now. Please try again in a moment."
	GuidanceNoHits       = "I could not find relevant information in your connected sources for that question. Please try a more specific query or tell me which document or section to use."
)

// Retriever 向量检索
type Retriever interface {
	IsEmpty(ctx context.Context) bool
	Retrieve(ctx context.Context, query string, k int) ([]types.Hit, error)
}

// SettingsSource 当前生效的设置与密钥
type SettingsSource interface {
	EffectiveSettings(ctx context.Context) (types.EffectiveSettings, error)
	APIKey(ctx context.Context, provider string) (string, error)
}

// Completion 流式补全
type Completion interface {
	StreamCompletion(ctx context.Context, settings types.EffectiveSettings, apiKey string, messages []types.Message) (*schema.StreamReader[string], error)
}

// Service RAG 问答服务
type Service struct {
	index      Retriever
	settings   SettingsSource
	completion Completion
	topK       int
}

// NewService 创建 RAG 服务
func NewService(index Retriever, settings SettingsSource, completion Completion) *Service {
	return &Service{
		index:      index,
		settings:   settings,
		completion: completion,
		topK:       vectorstore.DefaultTopK,
	}
}

// StreamAnswer 流式回答，返回的 channel 在回答结束或 ctx 取消后关闭
// 任何失败都转成引导文案输出，不返回错误
func (s *Service) StreamAnswer(ctx context.Context, message string, history []types.Message) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		s.answer(ctx, message, history, out)
	}()
	return out
}

func (s *Service) answer(ctx context.Context, message string, history []types.Message, out chan<- string) {
	if s.index.IsEmpty(ctx) {
		emitText(ctx, out, GuidanceNoSources)
		return
	}

	hits, err := s.index.Retrieve(ctx, message, s.topK)
	if err != nil {
		log.Printf("Warning: retrieval failed: %v", err)
		emitText(ctx, out, GuidanceSourcesError)
		return
	}
	if len(hits) == 0 {
		emitText(ctx, out, GuidanceNoHits)
		return
	}

	messages := BuildMessages(message, history, hits)

	settings, err := s.settings.EffectiveSettings(ctx)
	if err != nil {
		emitText(ctx, out, "Model request failed: "+types.Detail(err))
		return
	}
	apiKey, err := s.settings.APIKey(ctx, settings.Provider)
	if err != nil {
		emitText(ctx, out, "Model request failed: "+types.Detail(err))
		return
	}
	if llm.RequiresKey(settings.Provider) && apiKey == "" {
		emitText(ctx, out, "API key for provider '"+settings.Provider+"' is missing. Add it in Settings.")
		return
	}

	sr, err := s.completion.StreamCompletion(ctx, settings, apiKey, messages)
	if err != nil {
		emitText(ctx, out, "Model request failed: "+types.Detail(err))
		return
	}
	defer sr.Close()

	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Printf("Warning: completion stream failed: %v", err)
			emitText(ctx, out, "Model request failed: "+types.Detail(err))
			return
		}
		if chunk == "" {
			continue
		}
		if !emit(ctx, out, chunk) {
			return
		}
	}
}

// emit 消费方已离开时返回 false
func emit(ctx context.Context, out chan<- string, token string) bool {
	select {
	case out <- token:
		return true
	case <-ctx.Done():
		return false
	}
}

func emitText(ctx context.Context, out chan<- string, text string) {
	for _, token := range Tokens(text) {
		if !emit(ctx, out, token) {
			return
		}
	}
}
