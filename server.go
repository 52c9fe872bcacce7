package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-enhancer/common"
	"image-enhancer/internal/editor"
	"image-enhancer/internal/genai/gemini"
	"image-enhancer/internal/publish"
	"image-enhancer/internal/tools"
	"image-enhancer/internal/web"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	// 加载配置
	config, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 打印配置信息（隐藏敏感信息）
	common.WithFields(map[string]interface{}{
		"mode":            config.ServerMode,
		"genai_base_url":  config.GenAIBaseURL,
		"genai_model":     config.GenAIEditModelName,
		"genai_timeout":   config.GenAITimeout().String(),
		"api_key":         maskAPIKey(config.APIKey()),
		"publish_backend": config.PublishBackend,
	}).Info("Server starting...")

	// 创建 Gemini 客户端；API Key 在每次调用时读取
	geminiClient := gemini.NewClientFromConfig(config)

	publisher, err := publish.NewFromConfig(config)
	if err != nil {
		common.Fatalf("Failed to create publisher: %v", err)
	}

	switch config.ServerMode {
	case "stdio":
		err = serveStdio(config, geminiClient, publisher)
	default:
		err = serveHTTP(config, geminiClient, publisher)
	}
	if err != nil {
		common.Fatalf("Server error: %v", err)
	}
}

// serveStdio 以 MCP stdio 方式运行，整个进程共享一个编辑会话
func serveStdio(config *common.Config, requestor editor.EditRequestor, publisher publish.Publisher) error {
	ctrl := editor.NewController(requestor, publisher,
		editor.WithInstruction(config.DefaultPrompt),
		editor.WithLogger(common.WithSession("stdio")),
	)
	defer ctrl.Close()

	s := server.NewMCPServer(
		"Gemini Image Enhancer",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	if err := tools.RegisterEnhancerTools(s, ctrl); err != nil {
		return fmt.Errorf("failed to register enhancer tools: %w", err)
	}

	return server.ServeStdio(s)
}

// serveHTTP 运行浏览器前端，收到 SIGINT/SIGTERM 时优雅退出
func serveHTTP(config *common.Config, requestor editor.EditRequestor, publisher publish.Publisher) error {
	app := web.New(web.SettingsFromConfig(config), requestor, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		app.Close()
		return err
	case <-ctx.Done():
	}

	common.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
