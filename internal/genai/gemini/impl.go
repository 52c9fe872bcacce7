package gemini

import (
	"image-enhancer/common"
)

// NewClientFromConfig 从配置创建 Gemini 客户端
func NewClientFromConfig(cfg *common.Config) *Client {
	return NewClient(Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.GenAIBaseURL,
		ModelName: cfg.GenAIEditModelName,
		Timeout:   cfg.GenAITimeout(),
	})
}
