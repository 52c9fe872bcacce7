package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DefaultImageType 远端未声明类型时使用
const DefaultImageType = "image/png"

// EncodeDataURL 组装 data:<type>;base64,<payload>
func EncodeDataURL(mediaType string, data []byte) string {
	return BuildDataURL(mediaType, base64.StdEncoding.EncodeToString(data))
}

// BuildDataURL 用已编码的 base64 内容组装 data URL
func BuildDataURL(mediaType, payload string) string {
	return fmt.Sprintf("data:%s;base64,%s", mediaType, payload)
}

// Payload 返回第一个逗号之后的内容；没有逗号时原样返回
func Payload(dataURL string) string {
	if _, rest, ok := strings.Cut(dataURL, ","); ok {
		return rest
	}
	return dataURL
}

// ParseDataURL 拆分出 MIME 类型和 base64 内容
func ParseDataURL(dataURL string) (mediaType, payload string, err error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return "", "", fmt.Errorf("invalid data URI format")
	}
	header = strings.TrimPrefix(header, "data:")
	if !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("unsupported data URI encoding")
	}
	return strings.TrimSuffix(header, ";base64"), payload, nil
}

// DecodeDataURL 解析并解码 data URL
func DecodeDataURL(dataURL string) (string, []byte, error) {
	mediaType, payload, err := ParseDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return mediaType, data, nil
}
