package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"image-enhancer/common"
	"image-enhancer/internal/encoder"
	"image-enhancer/internal/media"
	"image-enhancer/internal/publish"

	"github.com/sirupsen/logrus"
)

// CopyResetDelay 复制标记保持时间
const CopyResetDelay = 2 * time.Second

var (
	// ErrNoResult 还没有可下载或发布的结果
	ErrNoResult = errors.New("no edited image available")
	// ErrNotPublished 还没有发布链接
	ErrNotPublished = errors.New("image has not been published")
)

// EditRequestor 远端编辑能力
type EditRequestor interface {
	EditImage(ctx context.Context, req media.EditRequest) (media.EditResult, error)
}

// Controller 单个会话的状态机；所有状态修改都经过 Reduce
type Controller struct {
	mu      sync.Mutex
	state   ViewState
	changed chan struct{}

	requestor EditRequestor
	publisher publish.Publisher
	clock     Clock
	copyDelay time.Duration
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

// Option 配置 Controller
type Option func(*Controller)

// WithClock 替换定时器来源
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithCopyResetDelay 修改复制标记保持时间
func WithCopyResetDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.copyDelay = d
	}
}

// WithInstruction 设置初始提示词
func WithInstruction(text string) Option {
	return func(c *Controller) {
		c.state.Instruction = text
	}
}

// WithLogger 绑定日志条目，例如带会话 ID
func WithLogger(entry *logrus.Entry) Option {
	return func(c *Controller) {
		c.log = entry
	}
}

// NewController 创建控制器
func NewController(requestor EditRequestor, publisher publish.Publisher, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		state:     NewState(common.DefaultPrompt),
		changed:   make(chan struct{}),
		requestor: requestor,
		publisher: publisher,
		clock:     realClock{},
		copyDelay: CopyResetDelay,
		log:       logrus.NewEntry(common.GetLogger()),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot 返回当前状态的副本
func (c *Controller) Snapshot() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Changed 返回在下一次状态变化时关闭的 channel
func (c *Controller) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// apply 调用方必须持有 c.mu
func (c *Controller) apply(ev Event) ViewState {
	next := Reduce(c.state, ev)
	if next != c.state {
		c.state = next
		close(c.changed)
		c.changed = make(chan struct{})
	}
	return c.state
}

// dispatch 在锁内应用一个事件
func (c *Controller) dispatch(ev Event) ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(ev)
}

// SelectFile 丢弃当前图片并编码新文件；被重置或新选择取代时结果会被丢弃
func (c *Controller) SelectFile(ctx context.Context, src encoder.Source) error {
	gen := c.dispatch(FileSelected{}).Generation

	img, err := encoder.EncodeSource(ctx, src)
	if err != nil {
		c.log.WithError(err).WithField("name", src.Name()).Warn("Failed to read uploaded image")
		c.dispatch(FileFailed{Generation: gen, Err: err})
		return err
	}

	state := c.dispatch(FileLoaded{Generation: gen, Image: img})
	if state.Generation != gen {
		c.log.WithField("name", src.Name()).Debug("Discarding superseded file selection")
		return nil
	}
	c.log.WithFields(logrus.Fields{
		"name":      src.Name(),
		"mime_type": img.MediaType,
	}).Info("Source image loaded")
	return nil
}

// Reset 回到空状态；进行中的任务不会被取消，但其结果会被丢弃
func (c *Controller) Reset() {
	c.dispatch(Reset{})
	c.log.Debug("Editor reset")
}

// SetInstruction 修改提示词
func (c *Controller) SetInstruction(text string) {
	c.dispatch(InstructionChanged{Text: text})
}

// RequestEdit 校验后在后台发起一次远端编辑；已有编辑进行中时不做任何事
func (c *Controller) RequestEdit() error {
	c.mu.Lock()
	if c.state.Source == nil || strings.TrimSpace(c.state.Instruction) == "" {
		c.apply(EditRejected{})
		c.mu.Unlock()
		return media.ErrValidation
	}
	if c.state.Editing {
		c.mu.Unlock()
		return nil
	}
	state := c.apply(EditStarted{})
	req := media.EditRequest{Image: *state.Source, Instruction: state.Instruction}
	gen := state.Generation
	c.tasks.Add(1)
	c.mu.Unlock()

	c.log.WithField("prompt", req.Instruction).Info("Edit requested")

	go func() {
		defer c.tasks.Done()
		result, err := c.requestor.EditImage(c.ctx, req)
		if err != nil {
			c.log.WithError(err).Warn("Edit failed")
			c.dispatch(EditFailed{Generation: gen, Err: err})
			return
		}
		if c.dispatch(EditSucceeded{Generation: gen, Result: result}).Generation != gen {
			c.log.Debug("Discarding superseded edit response")
		}
	}()
	return nil
}

// Download 把当前结果交给平台保存，不改变状态
func (c *Controller) Download(d Downloader) error {
	state := c.Snapshot()
	if !state.CanDownload() {
		return ErrNoResult
	}
	mediaType, data, err := media.DecodeDataURL(state.Result.Data)
	if err != nil {
		return fmt.Errorf("failed to decode edited image: %w", err)
	}
	return d.Save(DownloadFileName, mediaType, data)
}

// Publish 在后台发布当前结果；发布中或已发布时不做任何事
func (c *Controller) Publish() error {
	c.mu.Lock()
	if !c.state.CanDownload() {
		c.mu.Unlock()
		return ErrNoResult
	}
	if c.state.Publishing || c.state.Published != nil {
		c.mu.Unlock()
		return nil
	}
	state := c.apply(PublishStarted{})
	result := *state.Result
	gen := state.Generation
	c.tasks.Add(1)
	c.mu.Unlock()

	c.log.Info("Publish requested")

	go func() {
		defer c.tasks.Done()
		artifact, err := c.publisher.Publish(c.ctx, result)
		if err != nil {
			c.log.WithError(err).Warn("Publish failed")
			c.dispatch(PublishFailed{Generation: gen, Err: err})
			return
		}
		if c.dispatch(PublishSucceeded{Generation: gen, Artifact: artifact}).Published == nil {
			c.log.Debug("Discarding superseded publish completion")
		}
	}()
	return nil
}

// CopyPublishedURL 把发布链接写入剪贴板，并在 copyDelay 后复位复制标记。
// 之前的定时器不会被取消；它们到期时因为 token 过期而不生效。
func (c *Controller) CopyPublishedURL(ctx context.Context, cb Clipboard) error {
	state := c.Snapshot()
	if state.Published == nil {
		return ErrNotPublished
	}
	url := state.Published.URL

	if err := cb.WriteText(ctx, url); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	c.mu.Lock()
	if c.state.Published == nil || c.state.Published.URL != url {
		c.mu.Unlock()
		return nil
	}
	token := c.apply(URLCopyConfirmed{}).CopyToken
	c.mu.Unlock()

	c.clock.AfterFunc(c.copyDelay, func() {
		c.dispatch(URLCopyExpired{Token: token})
	})
	return nil
}

// WaitSettled 等待没有编辑或发布在进行中，返回此时的状态
func (c *Controller) WaitSettled(ctx context.Context) (ViewState, error) {
	for {
		c.mu.Lock()
		state, changed := c.state, c.changed
		c.mu.Unlock()
		if !state.Editing && !state.Publishing {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

// Wait 等待所有后台任务结束
func (c *Controller) Wait() {
	c.tasks.Wait()
}

// Close 取消后台任务的上下文并等待其退出
func (c *Controller) Close() {
	c.cancel()
	c.tasks.Wait()
}
