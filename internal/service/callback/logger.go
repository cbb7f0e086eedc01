// Package callback Eino 组件回调日志
// 记录 Embedding、ChatModel、Indexer、Retriever 的调用摘要与错误
package callback

import (
	"context"
	"log"
	"strconv"
	"sync"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const maxLogLen = 120

// Logger 日志回调处理器
// 错误总是记录，开始/结束事件只在调试模式下记录
type Logger struct {
	EnableDebug bool
	logf        func(format string, args ...any)
}

// NewLogger 创建日志回调处理器
func NewLogger(enableDebug bool) *Logger {
	return &Logger{EnableDebug: enableDebug, logf: log.Printf}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.EnableDebug {
		l.logf("[Eino] start %s: %s", describe(info), summarizeInput(input))
	}
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if l.EnableDebug {
		l.logf("[Eino] end %s: %s", describe(info), summarizeOutput(output))
	}
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.logf("Warning: [Eino] %s failed: %v", describe(info), err)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	if l.EnableDebug {
		l.logf("[Eino] stream start %s", describe(info))
	}
	return ctx
}

// OnEndWithStreamOutput 流式输出开始时调用，回调方必须关闭流
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	if l.EnableDebug {
		l.logf("[Eino] stream output %s", describe(info))
	}
	return ctx
}

func describe(info *callbacks.RunInfo) string {
	if info == nil {
		return "unknown"
	}
	name := info.Name
	if name == "" {
		name = info.Type
	}
	return string(info.Component) + "/" + name
}

// summarizeInput 只记录规模信息，避免把文档或密钥写入日志
func summarizeInput(input callbacks.CallbackInput) string {
	if in := model.ConvCallbackInput(input); in != nil {
		return plural(len(in.Messages), "message")
	}
	if in := embedding.ConvCallbackInput(input); in != nil {
		return plural(len(in.Texts), "text")
	}
	if in := indexer.ConvCallbackInput(input); in != nil {
		return plural(len(in.Docs), "document")
	}
	if in := retriever.ConvCallbackInput(input); in != nil {
		return "query=" + clip(in.Query)
	}
	return "-"
}

func summarizeOutput(output callbacks.CallbackOutput) string {
	if out := model.ConvCallbackOutput(output); out != nil && out.Message != nil {
		return "reply of " + plural(len([]rune(out.Message.Content)), "char")
	}
	if out := embedding.ConvCallbackOutput(output); out != nil {
		return plural(len(out.Embeddings), "vector")
	}
	if out := indexer.ConvCallbackOutput(output); out != nil {
		return plural(len(out.IDs), "id")
	}
	if out := retriever.ConvCallbackOutput(output); out != nil {
		return plural(len(out.Docs), "document")
	}
	return "-"
}

func plural(n int, noun string) string {
	s := strconv.Itoa(n) + " " + noun
	if n != 1 {
		s += "s"
	}
	return s
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxLogLen {
		return s
	}
	return string(r[:maxLogLen]) + "..."
}

var setupOnce sync.Once

// SetupGlobalCallbacks 注册全局回调，重复调用只生效一次
func SetupGlobalCallbacks(enableDebug bool) {
	setupOnce.Do(func() {
		callbacks.AppendGlobalHandlers(NewLogger(enableDebug))
		log.Printf("[Eino] Global callbacks registered (debug=%v)", enableDebug)
	})
}
