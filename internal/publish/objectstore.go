package publish

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"image-enhancer/common"
	"image-enhancer/internal/media"
	"image-enhancer/internal/oss"
	"image-enhancer/internal/utils"
)

// ObjectStorePublisher 把结果上传到 S3 兼容存储并返回公开 URL
type ObjectStorePublisher struct {
	store  oss.OSSIface
	bucket string
	now    func() time.Time
}

// NewObjectStorePublisher 创建对象存储发布器
func NewObjectStorePublisher(store oss.OSSIface, bucket string) *ObjectStorePublisher {
	return &ObjectStorePublisher{store: store, bucket: bucket, now: time.Now}
}

// Publish 实现 Publisher
func (p *ObjectStorePublisher) Publish(ctx context.Context, result media.EditResult) (media.PublishedArtifact, error) {
	contentType, data, err := media.DecodeDataURL(result.Data)
	if err != nil {
		return media.PublishedArtifact{}, fmt.Errorf("invalid edit result: %w", err)
	}

	now := p.now()
	key := utils.GenerateImagePath(now) + utils.GenerateImageFileName(now, contentType)

	url, err := p.store.UploadFileWithURL(ctx, p.bucket, key, bytes.NewReader(data), contentType)
	if err != nil {
		return media.PublishedArtifact{}, fmt.Errorf("failed to upload image to OSS: %w", err)
	}

	common.WithFields(map[string]interface{}{
		"bucket": p.bucket,
		"key":    key,
		"url":    url,
	}).Info("Image published")

	return media.PublishedArtifact{URL: url}, nil
}
