// Package editor 持有页面的全部可变状态，并通过纯函数 Reduce 推进状态。
//
// 后台任务（编码、远端编辑、发布、复制标记复位）从不直接修改状态，
// 只把结果作为事件交回控制器；事件携带发起时的 Generation，
// 与当前值不一致的迟到结果会被丢弃。
package editor

import (
	"strings"

	"image-enhancer/internal/media"
)

// Phase 由 ViewState 推导出的界面阶段
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseIdle       Phase = "idle"
	PhaseEditing    Phase = "editing"
	PhaseEdited     Phase = "edited"
	PhaseFailed     Phase = "failed"
	PhasePublishing Phase = "publishing"
	PhasePublished  Phase = "published"
)

// ViewState 渲染的唯一数据来源
type ViewState struct {
	Source      *media.EncodedImage `json:"source,omitempty"`
	Instruction string              `json:"instruction"`

	Editing   bool              `json:"editing"`
	EditError string            `json:"editError,omitempty"`
	Result    *media.EditResult `json:"result,omitempty"`

	Publishing   bool                     `json:"publishing"`
	PublishError string                   `json:"publishError,omitempty"`
	Published    *media.PublishedArtifact `json:"published,omitempty"`
	URLCopied    bool                     `json:"urlCopied"`

	// UploadError 读取文件失败，展示在上传区域
	UploadError string `json:"uploadError,omitempty"`
	// Notice 校验失败提示
	Notice string `json:"notice,omitempty"`

	// Generation 每次选择文件、重置、开始编辑时递增
	Generation uint64 `json:"generation"`
	// CopyToken 每次复制递增，只有最新一次复制的定时器能清除 URLCopied
	CopyToken uint64 `json:"-"`
}

// NewState 创建空状态
func NewState(instruction string) ViewState {
	return ViewState{Instruction: instruction}
}

// HasSource 是否已加载源图片
func (s ViewState) HasSource() bool {
	return s.Source != nil
}

// Phase 推导当前阶段
func (s ViewState) Phase() Phase {
	switch {
	case s.Source == nil:
		return PhaseEmpty
	case s.Editing:
		return PhaseEditing
	case s.EditError != "":
		return PhaseFailed
	case s.Result == nil:
		return PhaseIdle
	case s.Publishing:
		return PhasePublishing
	case s.Published != nil:
		return PhasePublished
	default:
		return PhaseEdited
	}
}

// CanEdit 编辑按钮是否可用
func (s ViewState) CanEdit() bool {
	return s.Source != nil && !s.Editing && strings.TrimSpace(s.Instruction) != ""
}

// CanDownload 下载和发布按钮是否展示
func (s ViewState) CanDownload() bool {
	return s.Result != nil && !s.Editing && s.EditError == ""
}

// CanPublish 发布按钮是否可用
func (s ViewState) CanPublish() bool {
	return s.CanDownload() && !s.Publishing && s.Published == nil
}

// Event 状态转换的输入
type Event interface {
	isEvent()
}

type (
	// FileSelected 开始读取新文件；丢弃当前源图片及所有下游状态
	FileSelected struct{}
	// FileLoaded 文件编码成功
	FileLoaded struct {
		Generation uint64
		Image      media.EncodedImage
	}
	// FileFailed 文件读取失败
	FileFailed struct {
		Generation uint64
		Err        error
	}
	// Reset 回到空状态
	Reset struct{}
	// InstructionChanged 用户修改了提示词
	InstructionChanged struct {
		Text string
	}
	// EditRejected 校验失败，不发起远端调用
	EditRejected struct{}
	// EditStarted 发起远端编辑
	EditStarted struct{}
	// EditSucceeded 远端返回图片
	EditSucceeded struct {
		Generation uint64
		Result     media.EditResult
	}
	// EditFailed 远端调用失败或没有返回图片
	EditFailed struct {
		Generation uint64
		Err        error
	}
	// PublishStarted 发起发布
	PublishStarted struct{}
	// PublishSucceeded 发布完成
	PublishSucceeded struct {
		Generation uint64
		Artifact   media.PublishedArtifact
	}
	// PublishFailed 发布后端失败；模拟发布不会触发
	PublishFailed struct {
		Generation uint64
		Err        error
	}
	// URLCopyConfirmed 剪贴板写入成功
	URLCopyConfirmed struct{}
	// URLCopyExpired 复制标记的定时器到期
	URLCopyExpired struct {
		Token uint64
	}
)

func (FileSelected) isEvent()       {}
func (FileLoaded) isEvent()         {}
func (FileFailed) isEvent()         {}
func (Reset) isEvent()              {}
func (InstructionChanged) isEvent() {}
func (EditRejected) isEvent()       {}
func (EditStarted) isEvent()        {}
func (EditSucceeded) isEvent()      {}
func (EditFailed) isEvent()         {}
func (PublishStarted) isEvent()     {}
func (PublishSucceeded) isEvent()   {}
func (PublishFailed) isEvent()      {}
func (URLCopyConfirmed) isEvent()   {}
func (URLCopyExpired) isEvent()     {}

// Reduce 纯状态转换；不满足前置条件的事件原样返回 s
func Reduce(s ViewState, ev Event) ViewState {
	switch e := ev.(type) {
	case FileSelected:
		return cleared(s)

	case FileLoaded:
		if e.Generation != s.Generation || s.Source != nil {
			return s
		}
		img := e.Image
		s.Source = &img
		s.UploadError = ""
		return s

	case FileFailed:
		if e.Generation != s.Generation || s.Source != nil {
			return s
		}
		s.UploadError = media.ReadFailureMessage
		return s

	case Reset:
		return cleared(s)

	case InstructionChanged:
		s.Instruction = e.Text
		s.Notice = ""
		return s

	case EditRejected:
		s.Notice = media.ValidationMessage
		return s

	case EditStarted:
		if s.Source == nil || s.Editing {
			return s
		}
		s.Generation++
		s.Editing = true
		s.EditError = ""
		s.Notice = ""
		s.Result = nil
		s.Publishing = false
		s.PublishError = ""
		s.Published = nil
		s.URLCopied = false
		return s

	case EditSucceeded:
		if e.Generation != s.Generation || !s.Editing {
			return s
		}
		result := e.Result
		s.Editing = false
		s.Result = &result
		return s

	case EditFailed:
		if e.Generation != s.Generation || !s.Editing {
			return s
		}
		s.Editing = false
		s.EditError = media.FailureMessage(e.Err)
		return s

	case PublishStarted:
		if !s.CanPublish() {
			return s
		}
		s.Publishing = true
		s.PublishError = ""
		return s

	case PublishSucceeded:
		if e.Generation != s.Generation || !s.Publishing || s.Result == nil {
			return s
		}
		artifact := e.Artifact
		s.Publishing = false
		s.Published = &artifact
		return s

	case PublishFailed:
		if e.Generation != s.Generation || !s.Publishing {
			return s
		}
		s.Publishing = false
		s.PublishError = "Failed to publish: " + e.Err.Error()
		return s

	case URLCopyConfirmed:
		if s.Published == nil {
			return s
		}
		s.CopyToken++
		s.URLCopied = true
		return s

	case URLCopyExpired:
		if e.Token != s.CopyToken {
			return s
		}
		s.URLCopied = false
		return s
	}
	return s
}

// cleared 清空源图片和所有下游状态；提示词保留，Generation 递增
func cleared(s ViewState) ViewState {
	return ViewState{
		Instruction: s.Instruction,
		Generation:  s.Generation + 1,
		CopyToken:   s.CopyToken,
	}
}
