package media

import (
	"errors"
	"fmt"
)

// 错误分类
var (
	// ErrReadFailure 本地文件读取失败
	ErrReadFailure = errors.New("failed to read the image file")
	// ErrValidation 缺少源图片或提示词
	ErrValidation = errors.New("an image and a prompt are required")
	// ErrRemoteCall 网络、鉴权或协议错误
	ErrRemoteCall = errors.New("remote call failed")
	// ErrNoImageProduced 调用成功但没有返回图片；原文直接展示给用户
	ErrNoImageProduced = errors.New("No image was generated. The model may have refused the request.")
)

// 面向用户的提示文案
const (
	ReadFailureMessage = "Failed to read the image file."
	ValidationMessage  = "Please upload an image and provide a prompt."
)

// RemoteCallError 包装远端调用错误
func RemoteCallError(err error) error {
	return fmt.Errorf("%w: %v", ErrRemoteCall, err)
}

// FailureMessage 把编辑失败转换为带有底层细节的单条提示
func FailureMessage(err error) string {
	return fmt.Sprintf("An error occurred: %s", err.Error())
}
