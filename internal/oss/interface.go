package oss

import (
	"context"
	"io"
)

// OSSIface 发布后端使用的对象存储接口
type OSSIface interface {
	// UploadFile 上传文件到 OSS，返回 bucket/key 形式的路径
	UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error)

	// UploadFileWithURL 上传文件并返回对象的公开访问 URL
	UploadFileWithURL(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error)
}

var _ OSSIface = (*S3Client)(nil)
