// Package types 定义跨服务共享的类型，避免包之间循环导入
package types

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 中立的对话消息，由各 Provider 转换为自己的线上格式
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Hit 检索命中
type Hit struct {
	Text     string  `json:"text"`
	Filename string  `json:"filename"`
	DocID    string  `json:"doc_id"`
	Score    float64 `json:"score"`
}

// EffectiveSettings 单次回答使用的最终设置
type EffectiveSettings struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"ollama_base_url"`
	Temperature float64 `json:"temperature"`
}
