package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPrompt 新会话的默认编辑提示词
const DefaultPrompt = "enhance and make crystal clear"

// Config 应用配置结构
type Config struct {
	// GenAI 配置；API Key 不在这里缓存，每次调用时从环境变量读取
	GenAIBaseURL        string
	GenAIEditModelName  string
	GenAITimeoutSeconds int

	// 运行模式: http 或 stdio
	ServerMode    string
	ServerAddress string
	ServerPort    string

	// 会话配置
	SessionSecret      string
	CookieSecure       bool
	SessionIdleMinutes int
	MaxUploadMB        int

	DefaultPrompt string

	// 发布配置: local（模拟发布）或 oss
	PublishBackend string
	PublishDelayMS int

	// OSS 配置
	OSSEndpoint  string
	OSSRegion    string
	OSSAccessKey string
	OSSSecretKey string
	OSSBucket    string

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件加载配置
func LoadConfig() (*Config, error) {
	// 加载 .env 文件（如果存在）
	if err := godotenv.Load(); err != nil {
		// .env 文件不存在时，尝试从环境变量读取
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := fromEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 初始化日志系统
	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	// stdio 模式下 stdout 被 MCP 协议占用
	if config.ServerMode == "stdio" && strings.EqualFold(logConfig.Output, "stdout") {
		logConfig.Output = "stderr"
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// fromEnv 从环境变量读取配置并填充默认值
func fromEnv() *Config {
	return &Config{
		GenAIBaseURL:        getEnv("GENAI_BASE_URL", ""),
		GenAIEditModelName:  getEnv("GENAI_EDIT_MODEL_NAME", "gemini-2.5-flash-image"),
		GenAITimeoutSeconds: getEnvInt("GENAI_TIMEOUT_SECONDS", 60),
		ServerMode:          strings.ToLower(getEnv("SERVER_MODE", "http")),
		ServerAddress:       getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		SessionSecret:       getEnv("SESSION_SECRET", ""),
		CookieSecure:        getEnvBool("COOKIE_SECURE", false),
		SessionIdleMinutes:  getEnvInt("SESSION_IDLE_MINUTES", 60),
		MaxUploadMB:         getEnvInt("MAX_UPLOAD_MB", 20),
		DefaultPrompt:       getEnv("DEFAULT_PROMPT", DefaultPrompt),
		PublishBackend:      strings.ToLower(getEnv("PUBLISH_BACKEND", "local")),
		PublishDelayMS:      getEnvInt("PUBLISH_DELAY_MS", 1500),
		// OSS 配置
		OSSEndpoint:  getEnv("OSS_ENDPOINT", ""),
		OSSRegion:    getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey: getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey: getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:    getEnv("OSS_BUCKET", ""),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

// Validate 校验配置项之间的约束；缺少 API Key 不算启动错误
func (c *Config) Validate() error {
	switch c.ServerMode {
	case "http", "stdio":
	default:
		return fmt.Errorf("unsupported SERVER_MODE: %s", c.ServerMode)
	}

	switch c.PublishBackend {
	case "local":
	case "oss":
		if c.OSSBucket == "" {
			return fmt.Errorf("OSS_BUCKET is required when PUBLISH_BACKEND=oss")
		}
	default:
		return fmt.Errorf("unsupported PUBLISH_BACKEND: %s", c.PublishBackend)
	}

	if c.PublishDelayMS < 0 {
		return fmt.Errorf("PUBLISH_DELAY_MS must not be negative")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

// APIKey 在调用时读取 GENAI_API_KEY
func (c *Config) APIKey() string {
	return os.Getenv("GENAI_API_KEY")
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}

// GenAITimeout 返回单次 GenAI 请求超时时间，0 表示不限制
func (c *Config) GenAITimeout() time.Duration {
	if c.GenAITimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.GenAITimeoutSeconds) * time.Second
}

// PublishDelay 返回模拟发布的延迟
func (c *Config) PublishDelay() time.Duration {
	return time.Duration(c.PublishDelayMS) * time.Millisecond
}

// SessionIdle 返回会话空闲回收时间
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// MaxUploadBytes 返回上传体积上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
