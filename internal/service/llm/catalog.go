package llm

// Provider 名称
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
)

// DefaultProvider 默认 Provider，不需要 API Key
const DefaultProvider = ProviderOllama

// SupportedProviders 支持的 Provider，顺序即展示顺序
var SupportedProviders = []string{ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq}

// DefaultModels 各 Provider 的默认模型
var DefaultModels = map[string]string{
	ProviderOllama:    "llama3.1:8b",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderGemini:    "gemini-1.5-flash",
	ProviderGroq:      "llama-3.3-70b-versatile",
}

// ModelCatalog 静态模型目录，Ollama 的模型只能在线获取
var ModelCatalog = map[string][]string{
	ProviderOllama:    {},
	ProviderOpenAI:    {"gpt-4o-mini", "gpt-4.1-mini", "gpt-4.1"},
	ProviderAnthropic: {"claude-3-5-haiku-latest", "claude-3-7-sonnet-latest"},
	ProviderGemini:    {"gemini-1.5-flash", "gemini-1.5-pro"},
	ProviderGroq: {
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
		"llama-3.1-70b-versatile",
		"mixtral-8x7b-32768",
		"gemma2-9b-it",
		"gemma-7b-it",
		"qwen-2.5-32b",
		"qwen-2.5-coder-32b",
		"deepseek-r1-distill-llama-70b",
		"deepseek-r1-distill-qwen-32b",
		"llama-guard-3-8b",
		"allam-2-7b",
		"compound-beta",
		"moonshotai/kimi-k2-instruct",
		"meta-llama/llama-4-scout-17b-16e-instruct",
	},
}

// OpenAI 兼容接口地址，openai 为空表示官方默认地址
var compatibleBaseURLs = map[string]string{
	ProviderOpenAI:    "",
	ProviderAnthropic: "https://api.anthropic.com/v1/",
	ProviderGemini:    "https://generativelanguage.googleapis.com/v1beta/openai/",
	ProviderGroq:      "https://api.groq.com/openai/v1",
}

// IsSupported Provider 是否受支持
func IsSupported(provider string) bool {
	_, ok := DefaultModels[provider]
	return ok
}

// RequiresKey Provider 是否需要 API Key
func RequiresKey(provider string) bool {
	return IsSupported(provider) && provider != DefaultProvider
}

// KeyedProviders 需要 API Key 的 Provider
func KeyedProviders() []string {
	out := make([]string, 0, len(SupportedProviders)-1)
	for _, p := range SupportedProviders {
		if RequiresKey(p) {
			out = append(out, p)
		}
	}
	return out
}

// CatalogModels 返回静态目录的副本
func CatalogModels(provider string) []string {
	return append([]string{}, ModelCatalog[provider]...)
}
