package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/service/types"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
)

const msgOllamaUnreachable = "Could not connect to Ollama server. Make sure Ollama is running and reachable."

// errStreamClosed 消费方已关闭流
var errStreamClosed = errors.New("stream closed by consumer")

// ollamaCompleter 本地 Ollama Provider
type ollamaCompleter struct {
	client      *api.Client
	model       string
	temperature float64
}

func (r *Registry) newOllama(_ context.Context, settings types.EffectiveSettings, _ string) (Completer, error) {
	client, err := newOllamaClient(settings.BaseURL, r.httpClient)
	if err != nil {
		return nil, err
	}
	return &ollamaCompleter{
		client:      client,
		model:       settings.Model,
		temperature: settings.Temperature,
	}, nil
}

func newOllamaClient(baseURL string, httpClient *http.Client) (*api.Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, types.Errorf(types.ErrSettings, "Invalid Ollama base URL '%s'.", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return api.NewClient(u, httpClient), nil
}

// Stream 在后台 goroutine 中调用 Chat，回调把增量写入管道
func (c *ollamaCompleter) Stream(ctx context.Context, messages []types.Message) (*schema.StreamReader[string], error) {
	msgs := make([]api.Message, 0, len(messages))
	for _, m := range toSchemaMessages(messages) {
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}

	stream := true
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": c.temperature},
	}

	sr, sw := schema.Pipe[string](1)
	go func() {
		defer sw.Close()

		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if closed := sw.Send(resp.Message.Content, nil); closed {
				return errStreamClosed
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamClosed) {
			sw.Send("", ollamaError(err))
		}
	}()

	return sr, nil
}

// ollamaError 连接失败归类为 ErrConnectivity
func ollamaError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return types.Wrap(types.ErrConnectivity, msgOllamaUnreachable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.Wrap(types.ErrConnectivity, msgOllamaUnreachable, err)
	}
	return completionError(err)
}

// ListOllamaModels 列出本地已安装的模型名，按名称排序
func ListOllamaModels(ctx context.Context, baseURL string, httpClient *http.Client) ([]string, error) {
	client, err := newOllamaClient(baseURL, httpClient)
	if err != nil {
		return nil, err
	}

	resp, err := client.List(ctx)
	if err != nil {
		return nil, ollamaError(err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}
