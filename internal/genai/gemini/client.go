package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"image-enhancer/common"
	"image-enhancer/internal/media"
	"image-enhancer/internal/utils"

	"google.golang.org/genai"
)

// 默认编辑模型
const defaultEditModel = "gemini-2.5-flash-image"

// generator 对应 genai.Models 的 GenerateContent，便于测试替换
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// generatorFactory 每次调用时用当前的 API Key 创建 generator
type generatorFactory func(ctx context.Context, apiKey, baseURL string) (generator, error)

// Client Gemini 图片编辑客户端
type Client struct {
	apiKey     func() string
	baseURL    string
	model      string
	timeout    time.Duration
	newBackend generatorFactory
}

// Config Gemini 客户端配置
type Config struct {
	APIKey    func() string // 调用时读取 API Key
	BaseURL   string        // 自定义 Base URL，如果为空则使用默认值
	ModelName string        // 模型名称，例如：gemini-2.5-flash-image
	Timeout   time.Duration // 单次请求超时时间，0 表示不限制
}

// NewClient 创建新的 Gemini 客户端；缺少 API Key 不在这里报错
func NewClient(cfg Config) *Client {
	model := cfg.ModelName
	if model == "" {
		model = defaultEditModel
	}
	apiKey := cfg.APIKey
	if apiKey == nil {
		apiKey = func() string { return "" }
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    cfg.BaseURL,
		model:      model,
		timeout:    cfg.Timeout,
		newBackend: newGenAIBackend,
	}
}

// newGenAIBackend 创建 genai 客户端
func newGenAIBackend(ctx context.Context, apiKey, baseURL string) (generator, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	// 如果提供了自定义 Base URL，设置 HTTPOptions
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: baseURL,
		}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client.Models, nil
}

// EditImage 图片编辑：发送源图片和指令，只接受第一个候选的第一个 part 中的内联图片
func (c *Client) EditImage(ctx context.Context, req media.EditRequest) (media.EditResult, error) {
	if !req.Valid() {
		return media.EditResult{}, media.ErrValidation
	}

	common.WithFields(map[string]interface{}{
		"model":     c.model,
		"prompt":    req.Instruction,
		"mime_type": req.Image.MediaType,
	}).Debug("Starting image editing")

	apiKey := c.apiKey()
	if apiKey == "" {
		return media.EditResult{}, media.RemoteCallError(errors.New("GENAI_API_KEY is not set"))
	}

	imageData, err := req.Image.Bytes()
	if err != nil {
		return media.EditResult{}, media.RemoteCallError(fmt.Errorf("invalid source image: %w", err))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	backend, err := c.newBackend(ctx, apiKey, c.baseURL)
	if err != nil {
		return media.EditResult{}, media.RemoteCallError(err)
	}

	// 构建请求内容：包含图片和编辑提示
	parts := []*genai.Part{
		genai.NewPartFromBytes(imageData, req.Image.MediaType),
		genai.NewPartFromText(req.Instruction),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	}

	result, err := backend.GenerateContent(ctx, c.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, config)
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"model":  c.model,
			"prompt": req.Instruction,
		}).Error("Failed to edit image from Gemini API")
		return media.EditResult{}, media.RemoteCallError(err)
	}

	edited, err := extractEditResult(result)
	if err != nil {
		common.WithField("model", c.model).Warn("No edited image data found in Gemini response")
		return media.EditResult{}, err
	}

	common.WithFields(map[string]interface{}{
		"model":     c.model,
		"mime_type": edited.MediaType,
		"preview":   utils.TruncateForLog(edited.Data, 48),
	}).Debug("Image edited successfully")

	return edited, nil
}

// extractEditResult 取第一个候选第一个 part 的内联图片，缺失即视为模型拒绝
func extractEditResult(resp *genai.GenerateContentResponse) (media.EditResult, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return media.EditResult{}, media.ErrNoImageProduced
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return media.EditResult{}, media.ErrNoImageProduced
	}
	part := candidate.Content.Parts[0]
	if part == nil || part.InlineData == nil {
		return media.EditResult{}, media.ErrNoImageProduced
	}

	mimeType := part.InlineData.MIMEType
	if mimeType == "" {
		mimeType = media.DefaultImageType
	}
	return media.EditResult{
		Data:      media.EncodeDataURL(mimeType, part.InlineData.Data),
		MediaType: mimeType,
	}, nil
}
