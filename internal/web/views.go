package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"image-enhancer/internal/editor"
	"image-enhancer/internal/media"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageView 编辑页渲染数据
type PageView struct {
	State editor.ViewState
	Phase editor.Phase
	CSRF  string

	// data URL 需要标记为可信，否则 html/template 会替换为 #ZgotmplZ
	SourceURL    template.URL
	ResultURL    template.URL
	PublishedURL string
	SourceSize   string
	ResultSize   string

	// Refresh 页面自动刷新间隔（秒），0 表示不刷新
	Refresh int
}

// NewPageView 由状态快照构建渲染数据
func NewPageView(state editor.ViewState, csrf string) PageView {
	v := PageView{
		State: state,
		Phase: state.Phase(),
		CSRF:  csrf,
	}
	if state.Source != nil {
		v.SourceURL = template.URL(state.Source.Data)
		v.SourceSize = formatSize(state.Source.Data)
	}
	if state.Result != nil {
		v.ResultURL = template.URL(state.Result.Data)
		v.ResultSize = formatSize(state.Result.Data)
	}
	if state.Published != nil {
		v.PublishedURL = state.Published.URL
	}
	switch {
	case state.Editing, state.Publishing:
		v.Refresh = 1
	case state.URLCopied:
		v.Refresh = 2
	}
	return v
}

func formatSize(dataURL string) string {
	size, ok := media.Dimensions(dataURL)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d x %d", size.Width, size.Height)
}

// EditorPage 编辑页组件
func EditorPage(v PageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplates.ExecuteTemplate(w, "editor.html", v)
	})
}
