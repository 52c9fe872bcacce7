package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"image-enhancer/common"
	"image-enhancer/internal/editor"
	"image-enhancer/internal/encoder"
	"image-enhancer/internal/media"

	"github.com/labstack/echo/v4"
)

// StateResponse GET /state 的响应
type StateResponse struct {
	editor.ViewState
	Phase      editor.Phase `json:"phase"`
	SourceSize *media.Size  `json:"sourceSize,omitempty"`
	ResultSize *media.Size  `json:"resultSize,omitempty"`
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// controller 返回当前会话的控制器
func (a *App) controller(c echo.Context) (*editor.Controller, error) {
	id, err := sessionID(c)
	if err != nil {
		common.WithError(err).Warn("Failed to load session")
		return nil, fmt.Errorf("%w: %v", errNoSession, err)
	}
	return a.Sessions.Get(id), nil
}

func backToEditor(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleIndex(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	return Render(c, EditorPage(NewPageView(ctrl.Snapshot(), csrfToken(c))))
}

func (a *App) handleState(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	state := ctrl.Snapshot()
	resp := StateResponse{ViewState: state, Phase: state.Phase()}
	if state.Source != nil {
		if size, ok := media.Dimensions(state.Source.Data); ok {
			resp.SourceSize = &size
		}
	}
	if state.Result != nil {
		if size, ok := media.Dimensions(state.Result.Data); ok {
			resp.ResultSize = &size
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handleImage(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("image")
	if err != nil {
		// 取消选择文件时不改变状态
		if errors.Is(err, http.ErrMissingFile) {
			return backToEditor(c)
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload").SetInternal(err)
	}
	// 读取失败已经记录在状态里
	_ = ctrl.SelectFile(c.Request().Context(), encoder.FileHeader{Header: fh})
	return backToEditor(c)
}

func (a *App) handlePrompt(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	ctrl.SetInstruction(c.FormValue("instruction"))
	return backToEditor(c)
}

func (a *App) handleEdit(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	if params, err := c.FormParams(); err == nil && params.Has("instruction") {
		ctrl.SetInstruction(params.Get("instruction"))
	}
	// 校验失败会写入 Notice
	_ = ctrl.RequestEdit()
	return backToEditor(c)
}

func (a *App) handlePublish(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	if err := ctrl.Publish(); err != nil {
		common.WithError(err).Debug("Publish ignored")
	}
	return backToEditor(c)
}

func (a *App) handleCopy(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	// 真正的剪贴板在浏览器里；这里把链接交给页面脚本写入
	var copied string
	clipboard := editor.ClipboardFunc(func(ctx context.Context, text string) error {
		copied = text
		return nil
	})
	if err := ctrl.CopyPublishedURL(c.Request().Context(), clipboard); err != nil {
		if errors.Is(err, editor.ErrNotPublished) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"url": copied})
}

func (a *App) handleDownload(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	err = ctrl.Download(editor.DownloaderFunc(func(name, mediaType string, data []byte) error {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Blob(http.StatusOK, mediaType, data)
	}))
	if errors.Is(err, editor.ErrNoResult) {
		return echo.NewHTTPError(http.StatusNotFound, "no edited image available")
	}
	return err
}

func (a *App) handleReset(c echo.Context) error {
	ctrl, err := a.controller(c)
	if err != nil {
		return err
	}
	ctrl.Reset()
	return backToEditor(c)
}
