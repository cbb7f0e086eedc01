package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Elastic   ElasticConfig
	Vector    VectorConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Settings  SettingsConfig
	Ollama    OllamaConfig
	Embedding EmbeddingConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	DataDir     string
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置，Host 为空时会话历史只保存在内存
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ElasticConfig Elasticsearch配置
type ElasticConfig struct {
	Host        string
	Username    string
	Password    string
	IndexPrefix string
}

// VectorConfig 向量索引配置
type VectorConfig struct {
	Backend    string // elasticsearch, pgvector, memory
	Collection string
	Dimensions int
	PgDSN      string // 为空时复用 Database 配置
}

// StorageConfig 原始文件存储配置
type StorageConfig struct {
	Backend  string // 显式指定 local / remote，为空时按凭证自动选择
	LocalDir string
	Remote   RemoteStorageConfig
}

// RemoteStorageConfig S3 兼容对象存储配置
type RemoteStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	UseSSL    bool
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxSizeMB int
}

// SettingsConfig 模型设置持久化配置
type SettingsConfig struct {
	Backend  string // database, file
	FilePath string
	KeyFile  string
}

// OllamaConfig 本地 Ollama 配置
type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

// EmbeddingConfig 远程 Embedding 配置
type EmbeddingConfig struct {
	GeminiModel  string
	OpenAIModel  string
	ProbeTimeout int // 秒
	DashScope    DashScopeConfig
}

// DashScopeConfig 阿里云 DashScope Embedding 配置
type DashScopeConfig struct {
	APIKey     string
	Model      string
	Dimensions int
}

// Load 加载配置，path 指向的文件不存在时仅使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// 环境变量
	v.SetEnvPrefix("RAG_CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetURL 获取 pgx 可用的连接 URL
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxBytes 上传大小上限（字节）
func (c *UploadConfig) MaxBytes() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

// HasCredentials 是否配置了远程存储凭证
func (c *RemoteStorageConfig) HasCredentials() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

// ProbeTimeoutDuration Embedding 健康探测超时
func (c *EmbeddingConfig) ProbeTimeoutDuration() time.Duration {
	if c.ProbeTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ProbeTimeout) * time.Second
}

func setDefaults(v *viper.Viper) {
	dataDir := "./data"

	// App
	v.SetDefault("app.name", "rag-chat")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.dataDir", dataDir)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 60)
	// 流式回答不设写超时
	v.SetDefault("server.writeTimeout", 0)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "rag_chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Elastic
	v.SetDefault("elastic.host", "http://localhost:9200")
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.indexPrefix", "rag_chat")

	// Vector
	v.SetDefault("vector.backend", "elasticsearch")
	v.SetDefault("vector.collection", "documents")
	v.SetDefault("vector.dimensions", 1024)
	v.SetDefault("vector.pgDsn", "")

	// Storage
	v.SetDefault("storage.backend", "")
	v.SetDefault("storage.localDir", filepath.Join(dataDir, "uploads"))
	v.SetDefault("storage.remote.endpoint", "")
	v.SetDefault("storage.remote.accessKey", "")
	v.SetDefault("storage.remote.secretKey", "")
	v.SetDefault("storage.remote.region", "")
	v.SetDefault("storage.remote.bucket", "documents")
	v.SetDefault("storage.remote.prefix", "documents")
	v.SetDefault("storage.remote.useSSL", true)

	// Upload
	v.SetDefault("upload.maxSizeMB", 20)

	// Settings
	v.SetDefault("settings.backend", "database")
	v.SetDefault("settings.filePath", filepath.Join(dataDir, "config", "settings.json"))
	v.SetDefault("settings.keyFile", filepath.Join(dataDir, "secrets", "app.key"))

	// Ollama
	v.SetDefault("ollama.baseUrl", "http://localhost:11434")
	v.SetDefault("ollama.embedModel", "bge-m3")

	// Embedding
	v.SetDefault("embedding.geminiModel", "text-embedding-004")
	v.SetDefault("embedding.openaiModel", "text-embedding-3-small")
	v.SetDefault("embedding.probeTimeout", 5)
	v.SetDefault("embedding.dashscope.apiKey", "")
	v.SetDefault("embedding.dashscope.model", "text-embedding-v3")
	v.SetDefault("embedding.dashscope.dimensions", 0)
}
