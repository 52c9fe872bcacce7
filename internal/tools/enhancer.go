package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"image-enhancer/common"
	"image-enhancer/internal/editor"
	"image-enhancer/internal/encoder"
	"image-enhancer/internal/media"
	"image-enhancer/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StateSummary 工具返回的状态摘要；不包含图片数据本身
type StateSummary struct {
	Phase        editor.Phase `json:"phase"`
	Instruction  string       `json:"instruction"`
	SourceType   string       `json:"source_type,omitempty"`
	SourceSize   *media.Size  `json:"source_size,omitempty"`
	ResultType   string       `json:"result_type,omitempty"`
	ResultSize   *media.Size  `json:"result_size,omitempty"`
	PublishedURL string       `json:"published_url,omitempty"`
	URLCopied    bool         `json:"url_copied,omitempty"`
	UploadError  string       `json:"upload_error,omitempty"`
	EditError    string       `json:"edit_error,omitempty"`
	PublishError string       `json:"publish_error,omitempty"`
	Notice       string       `json:"notice,omitempty"`
}

// Summarize 构建状态摘要
func Summarize(s editor.ViewState) StateSummary {
	sum := StateSummary{
		Phase:        s.Phase(),
		Instruction:  s.Instruction,
		URLCopied:    s.URLCopied,
		UploadError:  s.UploadError,
		EditError:    s.EditError,
		PublishError: s.PublishError,
		Notice:       s.Notice,
	}
	if s.Source != nil {
		sum.SourceType = s.Source.MediaType
		if size, ok := media.Dimensions(s.Source.Data); ok {
			sum.SourceSize = &size
		}
	}
	if s.Result != nil {
		sum.ResultType = s.Result.MediaType
		if size, ok := media.Dimensions(s.Result.Data); ok {
			sum.ResultSize = &size
		}
	}
	if s.Published != nil {
		sum.PublishedURL = s.Published.URL
	}
	return sum
}

func stateResult(s editor.ViewState) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(Summarize(s), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode state: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type enhancerTools struct {
	ctrl *editor.Controller
}

// RegisterEnhancerTools 注册图片增强相关的 MCP tools；stdio 模式下只有一个会话，
// 所有工具共享同一个控制器。
//
// 工具列表：
//   - enhancer_load_image      从本地路径、URL 或 data URL 加载源图片
//   - enhancer_set_prompt      修改编辑提示词
//   - enhancer_edit_image      发起编辑并等待结果
//   - enhancer_publish         发布结果并等待链接
//   - enhancer_copy_url        返回发布链接并标记已复制
//   - enhancer_download        把结果保存到本地文件
//   - enhancer_reset           清空当前图片
//   - enhancer_get_state       查询当前状态
func RegisterEnhancerTools(s *server.MCPServer, ctrl *editor.Controller) error {
	t := &enhancerTools{ctrl: ctrl}

	loadTool := mcp.NewTool(
		"enhancer_load_image",
		mcp.WithDescription("Load the source image to enhance. Provide exactly one of path, image_url or data_url. Replaces any current image and result."),
		mcp.WithString("path",
			mcp.Description("Local file path of the image."),
		),
		mcp.WithString("image_url",
			mcp.Description("HTTP(S) URL of the image to download."),
		),
		mcp.WithString("data_url",
			mcp.Description("Image as a base64 data URL (data:<type>;base64,<payload>)."),
		),
	)

	s.AddTool(loadTool, t.loadImage)

	setPromptTool := mcp.NewTool(
		"enhancer_set_prompt",
		mcp.WithDescription("Set the editing prompt used by the next enhancement."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Text describing how to edit the image."),
		),
	)

	s.AddTool(setPromptTool, t.setPrompt)

	editTool := mcp.NewTool(
		"enhancer_edit_image",
		mcp.WithDescription("Enhance the loaded image with Gemini and wait for the result. Uses the current prompt unless prompt is given."),
		mcp.WithString("prompt",
			mcp.Description("Optional prompt; replaces the current prompt before editing."),
		),
	)

	s.AddTool(editTool, t.editImage)

	publishTool := mcp.NewTool(
		"enhancer_publish",
		mcp.WithDescription("Publish the edited image and wait for the shareable URL."),
	)

	s.AddTool(publishTool, t.publish)

	copyTool := mcp.NewTool(
		"enhancer_copy_url",
		mcp.WithDescription("Return the published URL for the client to copy, and mark it as copied for two seconds."),
	)

	s.AddTool(copyTool, t.copyURL)

	downloadTool := mcp.NewTool(
		"enhancer_download",
		mcp.WithDescription("Save the edited image to a local file. If output_path is a directory the file is named edited-image.png."),
		mcp.WithString("output_path",
			mcp.Required(),
			mcp.Description("Destination file or directory."),
		),
	)

	s.AddTool(downloadTool, t.download)

	resetTool := mcp.NewTool(
		"enhancer_reset",
		mcp.WithDescription("Discard the current image, result and published URL. The prompt is kept."),
	)

	s.AddTool(resetTool, t.reset)

	stateTool := mcp.NewTool(
		"enhancer_get_state",
		mcp.WithDescription("Return the current editor state as JSON."),
	)

	s.AddTool(stateTool, t.getState)

	return nil
}

func (t *enhancerTools) loadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := sourceFromRequest(ctx, req)
	if err != nil {
		common.WithError(err).Warn("Enhancer: invalid load_image arguments")
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := t.ctrl.SelectFile(ctx, src); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s (%v)", media.ReadFailureMessage, err)), nil
	}
	return stateResult(t.ctrl.Snapshot())
}

func (t *enhancerTools) setPrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
	}
	t.ctrl.SetInstruction(prompt)
	return stateResult(t.ctrl.Snapshot())
}

func (t *enhancerTools) editImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if prompt := req.GetString("prompt", ""); prompt != "" {
		t.ctrl.SetInstruction(prompt)
	}

	if err := t.ctrl.RequestEdit(); err != nil {
		return mcp.NewToolResultError(media.ValidationMessage), nil
	}

	state, err := t.ctrl.WaitSettled(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("edit still running: %v", err)), nil
	}
	if state.EditError != "" {
		return mcp.NewToolResultError(state.EditError), nil
	}
	common.WithField("prompt", utils.TruncateForLog(state.Instruction, 200)).Info("Enhancer: edit completed")
	return stateResult(state)
}

func (t *enhancerTools) publish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.ctrl.Publish(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("nothing to publish: %v", err)), nil
	}

	state, err := t.ctrl.WaitSettled(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("publish still running: %v", err)), nil
	}
	if state.PublishError != "" {
		return mcp.NewToolResultError(state.PublishError), nil
	}
	if state.Published == nil {
		return mcp.NewToolResultError("publish was superseded by another change"), nil
	}
	common.WithField("url", utils.TruncateForLog(state.Published.URL, 120)).Info("Enhancer: image published")
	return stateResult(state)
}

func (t *enhancerTools) copyURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// 没有系统剪贴板，链接作为工具结果交给客户端
	var copied string
	clipboard := editor.ClipboardFunc(func(ctx context.Context, text string) error {
		copied = text
		return nil
	})
	if err := t.ctrl.CopyPublishedURL(ctx, clipboard); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(copied), nil
}

func (t *enhancerTools) download(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outputPath, err := req.RequireString("output_path")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("output_path parameter is required: %v", err)), nil
	}

	var saved string
	err = t.ctrl.Download(editor.DownloaderFunc(func(name, mediaType string, data []byte) error {
		saved = outputPath
		if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
			saved = filepath.Join(outputPath, name)
		}
		return os.WriteFile(saved, data, 0o644)
	}))
	if err != nil {
		common.WithError(err).WithField("output_path", outputPath).Error("Enhancer: download failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to save image: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved edited image to %s", saved)), nil
}

func (t *enhancerTools) reset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.ctrl.Reset()
	return stateResult(t.ctrl.Snapshot())
}

func (t *enhancerTools) getState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return stateResult(t.ctrl.Snapshot())
}

// sourceFromRequest 根据参数构建图片来源，三个参数必须且只能提供一个
func sourceFromRequest(ctx context.Context, req mcp.CallToolRequest) (encoder.Source, error) {
	path := strings.TrimSpace(req.GetString("path", ""))
	imageURL := strings.TrimSpace(req.GetString("image_url", ""))
	dataURL := strings.TrimSpace(req.GetString("data_url", ""))

	given := 0
	for _, v := range []string{path, imageURL, dataURL} {
		if v != "" {
			given++
		}
	}
	if given != 1 {
		return nil, fmt.Errorf("exactly one of path, image_url or data_url is required")
	}

	switch {
	case path != "":
		return encoder.File{Path: path}, nil

	case dataURL != "":
		mediaType, data, err := media.DecodeDataURL(dataURL)
		if err != nil {
			return nil, fmt.Errorf("invalid data_url: %w", err)
		}
		return encoder.Bytes{Filename: "data-url", Type: mediaType, Data: data}, nil

	default:
		common.WithField("image_url", utils.TruncateForLog(imageURL, 200)).Debug("Enhancer: downloading source image")
		data, mimeType, err := utils.DownloadImageFromURL(ctx, imageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to download image: %w", err)
		}
		return encoder.Bytes{Filename: filepath.Base(imageURL), Type: mimeType, Data: data}, nil
	}
}
