// Package web 浏览器前端：每个浏览器会话对应一个 editor.Controller，
// 页面只渲染控制器的状态快照。
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"image-enhancer/common"
	"image-enhancer/internal/editor"
	"image-enhancer/internal/publish"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Settings 前端配置
type Settings struct {
	Addr           string
	SessionSecret  string
	CookieSecure   bool
	SessionIdle    time.Duration
	MaxUploadBytes int64
	DefaultPrompt  string
}

// SettingsFromConfig 从应用配置提取前端配置
func SettingsFromConfig(cfg *common.Config) Settings {
	return Settings{
		Addr:           cfg.GetServerAddr(),
		SessionSecret:  cfg.SessionSecret,
		CookieSecure:   cfg.CookieSecure,
		SessionIdle:    cfg.SessionIdle(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		DefaultPrompt:  cfg.DefaultPrompt,
	}
}

// App HTTP 前端
type App struct {
	Settings Settings
	Echo     *echo.Echo
	Sessions *Registry

	requestor   editor.EditRequestor
	publisher   publish.Publisher
	controlOpts []editor.Option
	stopSweeper func()
}

// Option 配置 App
type Option func(*App)

// WithControllerOptions 为每个新会话的控制器追加选项
func WithControllerOptions(opts ...editor.Option) Option {
	return func(a *App) {
		a.controlOpts = append(a.controlOpts, opts...)
	}
}

// New 创建前端并注册中间件和路由
func New(settings Settings, requestor editor.EditRequestor, publisher publish.Publisher, opts ...Option) *App {
	if settings.SessionSecret == "" {
		// 未配置时每个进程随机生成，重启后旧会话失效
		settings.SessionSecret = uuid.NewString() + uuid.NewString()
		common.Warnf("SESSION_SECRET is not set, using a random per-process secret")
	}
	if settings.DefaultPrompt == "" {
		settings.DefaultPrompt = common.DefaultPrompt
	}

	a := &App{
		Settings:  settings,
		Echo:      echo.New(),
		requestor: requestor,
		publisher: publisher,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Sessions = NewRegistry(settings.SessionIdle, a.newController)

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

func (a *App) newController(sessionID string) *editor.Controller {
	opts := []editor.Option{
		editor.WithInstruction(a.Settings.DefaultPrompt),
		editor.WithLogger(common.WithSession(sessionID)),
	}
	opts = append(opts, a.controlOpts...)
	return editor.NewController(a.requestor, a.publisher, opts...)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/healthz", handleHealth)

	e.GET("/", a.handleIndex)
	e.GET("/state", a.handleState)
	e.GET("/download", a.handleDownload)

	e.POST("/image", a.handleImage)
	e.POST("/prompt", a.handlePrompt)
	e.POST("/edit", a.handleEdit)
	e.POST("/publish", a.handlePublish)
	e.POST("/copy", a.handleCopy)
	e.POST("/reset", a.handleReset)
}

// Start 启动空闲会话回收并开始监听，阻塞直到服务关闭
func (a *App) Start() error {
	if a.Settings.SessionIdle > 0 {
		interval := a.Settings.SessionIdle / 4
		if interval < time.Minute {
			interval = time.Minute
		}
		a.stopSweeper = a.Sessions.StartSweeper(interval)
	}

	common.Infof("HTTP server listening on %s", a.Settings.Addr)
	if err := a.Echo.Start(a.Settings.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止监听并关闭所有会话
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	a.Close()
	return err
}

// Close 关闭所有会话的后台任务
func (a *App) Close() {
	if a.stopSweeper != nil {
		a.stopSweeper()
	}
	a.Sessions.Close()
}
