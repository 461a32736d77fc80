package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aevrHQ/ui/utils/generator"
)

// LocalConfig 本地磁盘配置
type LocalConfig struct {
	BasePath  string `mapstructure:"basePath"`
	PublicURL string `mapstructure:"publicUrl"`
}

type localOptions struct {
	Path string `mapstructure:"path"`
}

// LocalProvider 本地磁盘提供者，适合开发环境或由反向代理直接提供静态文件
type LocalProvider struct {
	absBasePath string
	publicURL   string
	now         func() time.Time
}

// NewLocalProvider 创建本地磁盘提供者，目录不存在时创建并检查可写
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if err := requireKeys(TypeLocal, "basePath", cfg.BasePath); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", cfg.BasePath, err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err)
	}

	testFile := filepath.Join(absPath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return nil, fmt.Errorf("local storage directory '%s' is not writable: %w", absPath, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	return &LocalProvider{
		absBasePath: absPath + string(os.PathSeparator),
		publicURL:   strings.TrimRight(cfg.PublicURL, "/"),
		now:         time.Now,
	}, nil
}

// Name 返回提供者名称
func (p *LocalProvider) Name() string {
	return string(TypeLocal)
}

// UploadFile 将文件写入 basePath 下的对象路径
func (p *LocalProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o localOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return FailedErr(err), nil
	}

	objectPath := strings.TrimLeft(o.Path, "/")
	if objectPath == "" {
		objectPath = generator.UploadPath(file.Name, p.now())
	}
	if !IsValidStoragePath(objectPath) {
		return Failed(fmt.Sprintf("invalid storage path: %s", objectPath)), nil
	}

	dstPath := filepath.Join(p.absBasePath, filepath.FromSlash(objectPath))
	// 防止目录遍历
	if !strings.HasPrefix(dstPath, p.absBasePath) {
		return Failed(fmt.Sprintf("invalid file path, potential directory traversal: %s", objectPath)), nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return Failed(fmt.Sprintf("failed to create directory for '%s': %v", objectPath, err)), nil
	}

	src, err := file.Open()
	if err != nil {
		return FailedErr(err), nil
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dstPath)
	if err != nil {
		return Failed(fmt.Sprintf("failed to create destination file '%s': %v", objectPath, err)), nil
	}
	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return Failed(fmt.Sprintf("failed to write file '%s': %v", objectPath, err)), nil
	}

	data := map[string]any{
		"path": objectPath,
		"file": dstPath,
		"name": file.Name,
		"size": written,
	}
	if p.publicURL != "" {
		data["url"] = p.publicURL + "/" + objectPath
	}
	return Succeeded(data), nil
}

// Health 检查存储目录可读
func (p *LocalProvider) Health(context.Context) error {
	_, err := os.ReadDir(p.absBasePath)
	return err
}

// IsValidStoragePath 校验对象路径：相对路径，且不含 ".." 段与控制字符
func IsValidStoragePath(objectPath string) bool {
	if objectPath == "" || strings.HasPrefix(objectPath, "/") || filepath.IsAbs(objectPath) {
		return false
	}
	if strings.ContainsRune(objectPath, '\\') {
		return false
	}
	for _, seg := range strings.Split(objectPath, "/") {
		if seg == ".." || seg == "" {
			return false
		}
	}
	for _, r := range objectPath {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return path.Clean(objectPath) == objectPath
}
