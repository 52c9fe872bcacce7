// Package publish 把编辑结果变成可分享的引用。
package publish

import (
	"context"
	"fmt"

	"image-enhancer/common"
	"image-enhancer/internal/media"
	"image-enhancer/internal/oss"
)

// Publisher 发布能力，控制器只依赖这个接口
type Publisher interface {
	Publish(ctx context.Context, result media.EditResult) (media.PublishedArtifact, error)
}

// NewFromConfig 根据 PUBLISH_BACKEND 选择发布实现
func NewFromConfig(cfg *common.Config) (Publisher, error) {
	switch cfg.PublishBackend {
	case "oss":
		client, err := oss.NewOSSClientFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OSS client: %w", err)
		}
		return NewObjectStorePublisher(client, cfg.OSSBucket), nil
	default:
		return NewLocalSimulator(cfg.PublishDelay()), nil
	}
}
