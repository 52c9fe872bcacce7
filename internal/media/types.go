// Package media 定义编辑流程中流转的图片实体，全部只存在于内存中。
package media

import "strings"

// EncodedImage 当前加载的源图片：自描述的 data URL 加声明的 MIME 类型
type EncodedImage struct {
	Data      string `json:"data"`
	MediaType string `json:"mediaType"`
}

// Payload 返回去掉 "data:...;base64," 前缀后的 base64 内容
func (i EncodedImage) Payload() string {
	return Payload(i.Data)
}

// Bytes 解码图片原始字节
func (i EncodedImage) Bytes() ([]byte, error) {
	_, data, err := DecodeDataURL(i.Data)
	return data, err
}

// EditRequest 单次编辑请求，不在调用结束后保留
type EditRequest struct {
	Image       EncodedImage
	Instruction string
}

// Valid 源图片存在且指令去除空白后非空
func (r EditRequest) Valid() bool {
	return r.Image.Data != "" && strings.TrimSpace(r.Instruction) != ""
}

// EditResult 远端返回的编辑结果
type EditResult struct {
	Data      string `json:"data"`
	MediaType string `json:"mediaType"`
}

// Bytes 解码结果图片原始字节
func (r EditResult) Bytes() ([]byte, error) {
	_, data, err := DecodeDataURL(r.Data)
	return data, err
}

// PublishedArtifact 发布后的可分享引用
type PublishedArtifact struct {
	URL string `json:"url"`
}
