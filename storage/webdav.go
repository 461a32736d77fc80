package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"

	"github.com/aevrHQ/ui/utils/generator"
)

// WebDAVConfig WebDAV 配置
type WebDAVConfig struct {
	URL       string `mapstructure:"url"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	RootPath  string `mapstructure:"rootPath"`
	PublicURL string `mapstructure:"publicUrl"`
}

type webdavOptions struct {
	Path string `mapstructure:"path"`
}

// WebDAVProvider WebDAV 提供者
type WebDAVProvider struct {
	client    *gowebdav.Client
	rootPath  string
	publicURL string
	now       func() time.Time
}

// NewWebDAVProvider 创建 WebDAV 提供者，构造时不访问网络
func NewWebDAVProvider(cfg WebDAVConfig, transport http.RoundTripper) (*WebDAVProvider, error) {
	if err := requireKeys(TypeWebDAV, "url", cfg.URL); err != nil {
		return nil, err
	}

	rootPath := strings.Trim(cfg.RootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if transport != nil {
		client.SetTransport(transport)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(cfg.URL, "/") + rootPath
	}

	return &WebDAVProvider{
		client:    client,
		rootPath:  rootPath,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

// Name 返回提供者名称
func (p *WebDAVProvider) Name() string {
	return string(TypeWebDAV)
}

// fullPath 生成完整的 WebDAV 路径
func (p *WebDAVProvider) fullPath(objectPath string) string {
	return p.rootPath + "/" + objectPath
}

// UploadFile 创建父目录后写入文件
func (p *WebDAVProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o webdavOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	objectPath := strings.TrimLeft(o.Path, "/")
	if objectPath == "" {
		objectPath = generator.UploadPath(file.Name, p.now())
	}
	fullPath := p.fullPath(objectPath)

	if dir := path.Dir(fullPath); dir != "/" && dir != "." {
		if err := p.run(ctx, func() error { return p.client.MkdirAll(dir, 0o755) }); err != nil {
			return Failed(fmt.Sprintf("failed to create directory %s: %v", dir, err)), nil
		}
	}

	// 文件在执行写入的 goroutine 中打开和关闭，取消后仍由它读完
	if err := p.run(ctx, func() error {
		body, err := file.Open()
		if err != nil {
			return err
		}
		defer func() { _ = body.Close() }()
		return p.client.WriteStream(fullPath, body, os.FileMode(0o644))
	}); err != nil {
		return Failed(fmt.Sprintf("failed to write file %s: %v", objectPath, err)), nil
	}

	return Succeeded(map[string]any{
		"path": objectPath,
		"url":  p.publicURL + "/" + objectPath,
		"name": file.Name,
		"size": file.Size,
	}), nil
}

// run gowebdav 不接受 context，在 goroutine 中执行并响应取消
func (p *WebDAVProvider) run(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
