package publish

import (
	"context"
	"time"

	"image-enhancer/common"
	"image-enhancer/internal/media"
)

// DefaultDelay 模拟发布耗时
const DefaultDelay = 1500 * time.Millisecond

// LocalSimulator 模拟发布：等待固定延迟后直接返回结果自身的 data URL。
// 不产生任何网络请求，也不持久化，上线前必须替换为真实后端。
type LocalSimulator struct {
	Delay time.Duration
}

// NewLocalSimulator 创建模拟发布器
func NewLocalSimulator(delay time.Duration) *LocalSimulator {
	return &LocalSimulator{Delay: delay}
}

// Publish 实现 Publisher
func (s *LocalSimulator) Publish(ctx context.Context, result media.EditResult) (media.PublishedArtifact, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return media.PublishedArtifact{}, ctx.Err()
		case <-timer.C:
		}
	}

	common.WithField("mime_type", result.MediaType).Debug("Simulated publish completed")
	return media.PublishedArtifact{URL: result.Data}, nil
}
