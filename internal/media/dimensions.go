package media

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Size 图片像素尺寸
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Dimensions 尽力读取图片尺寸，仅用于展示；无法识别时 ok 为 false
func Dimensions(dataURL string) (Size, bool) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return Size{}, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Size{}, false
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, true
}
