// Package encoder 把用户选择的文件转换为 data URL。
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"image-enhancer/common"
	"image-enhancer/internal/media"
)

// Source 可读取的文件句柄和声明的 MIME 类型
type Source interface {
	Name() string
	MediaType() string
	Open() (io.ReadCloser, error)
}

// Encode 读取 r 的全部内容并生成 EncodedImage；不做大小和类型校验
func Encode(ctx context.Context, r io.Reader, declaredType string) (media.EncodedImage, error) {
	if err := ctx.Err(); err != nil {
		return media.EncodedImage{}, fmt.Errorf("%w: %v", media.ErrReadFailure, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return media.EncodedImage{}, fmt.Errorf("%w: %v", media.ErrReadFailure, err)
	}

	mediaType := normalizeType(declaredType)
	if mediaType == "" {
		// 浏览器未声明类型时根据内容推断
		mediaType = normalizeType(http.DetectContentType(data))
	}

	common.WithFields(map[string]interface{}{
		"mime_type": mediaType,
		"size":      len(data),
	}).Debug("Image encoded")

	return media.EncodedImage{
		Data:      media.EncodeDataURL(mediaType, data),
		MediaType: mediaType,
	}, nil
}

// EncodeSource 打开并编码一个 Source
func EncodeSource(ctx context.Context, src Source) (media.EncodedImage, error) {
	rc, err := src.Open()
	if err != nil {
		common.WithError(err).WithField("name", src.Name()).Warn("Failed to open image source")
		return media.EncodedImage{}, fmt.Errorf("%w: %v", media.ErrReadFailure, err)
	}
	defer rc.Close()
	return Encode(ctx, rc, src.MediaType())
}

// normalizeType 去掉参数部分，例如 "image/png; charset=binary"
func normalizeType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(t); err == nil {
		return parsed
	}
	return t
}

// FileHeader 包装 multipart 上传的文件
type FileHeader struct {
	Header *multipart.FileHeader
}

func (f FileHeader) Name() string { return f.Header.Filename }

func (f FileHeader) MediaType() string { return f.Header.Header.Get("Content-Type") }

func (f FileHeader) Open() (io.ReadCloser, error) { return f.Header.Open() }

// File 本地文件路径，类型按扩展名推断
type File struct {
	Path string
}

func (f File) Name() string { return filepath.Base(f.Path) }

func (f File) MediaType() string { return mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Path))) }

func (f File) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

// Bytes 内存中的图片数据
type Bytes struct {
	Filename string
	Type     string
	Data     []byte
}

func (b Bytes) Name() string { return b.Filename }

func (b Bytes) MediaType() string { return b.Type }

func (b Bytes) Open() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b.Data)), nil }
