package editor

import "context"

// DownloadFileName 下载文件名固定
const DownloadFileName = "edited-image.png"

// Clipboard 平台剪贴板
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Downloader 平台保存文件的能力
type Downloader interface {
	Save(name, mediaType string, data []byte) error
}

// ClipboardFunc 函数适配 Clipboard
type ClipboardFunc func(ctx context.Context, text string) error

func (f ClipboardFunc) WriteText(ctx context.Context, text string) error { return f(ctx, text) }

// DownloaderFunc 函数适配 Downloader
type DownloaderFunc func(name, mediaType string, data []byte) error

func (f DownloaderFunc) Save(name, mediaType string, data []byte) error { return f(name, mediaType, data) }
