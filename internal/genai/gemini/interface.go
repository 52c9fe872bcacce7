package gemini

import (
	"context"

	"image-enhancer/internal/media"
)

// EditorIface 图片编辑接口
type EditorIface interface {
	EditImage(ctx context.Context, req media.EditRequest) (media.EditResult, error)
}

var _ EditorIface = (*Client)(nil)
