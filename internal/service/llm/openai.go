package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// compatibleCompleter 走 OpenAI 兼容接口的远程 Provider
type compatibleCompleter struct {
	chatModel model.BaseChatModel
}

func (r *Registry) newCompatible(ctx context.Context, settings types.EffectiveSettings, apiKey string) (Completer, error) {
	baseURL, ok := r.baseURLs[settings.Provider]
	if !ok {
		return nil, unsupported(settings.Provider)
	}

	temperature := float32(settings.Temperature)
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       settings.Model,
		Temperature: &temperature,
		HTTPClient:  r.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s chat model: %w", types.ErrSettings, settings.Provider, err)
	}

	return &compatibleCompleter{chatModel: chatModel}, nil
}

// Stream 流式补全，消费方关闭流后停止读取并释放连接
func (c *compatibleCompleter) Stream(ctx context.Context, messages []types.Message) (*schema.StreamReader[string], error) {
	src, err := c.chatModel.Stream(ctx, toSchemaMessages(messages))
	if err != nil {
		return nil, completionError(err)
	}

	sr, sw := schema.Pipe[string](1)
	go func() {
		defer src.Close()
		defer sw.Close()

		for {
			msg, err := src.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				sw.Send("", completionError(err))
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			if closed := sw.Send(msg.Content, nil); closed {
				return
			}
		}
	}()

	return sr, nil
}
