package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxDimensionProbeSize 超过该大小的图片不解析尺寸
const maxDimensionProbeSize = 10 * 1024 * 1024

// Base64Provider 本地编码提供者，不产生网络请求，主要用于预览和测试
type Base64Provider struct{}

// NewBase64Provider 创建 Base64 提供者
func NewBase64Provider() *Base64Provider {
	return &Base64Provider{}
}

// Name 返回提供者名称
func (p *Base64Provider) Name() string {
	return string(TypeBase64)
}

// UploadFile 读取文件并编码为 base64
func (p *Base64Provider) UploadFile(ctx context.Context, file *File, _ Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}

	data, err := file.ReadAll()
	if err != nil {
		return FailedErr(err), nil
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	result := map[string]any{
		"base64":  encoded,
		"dataUrl": "data:" + file.ContentType + ";base64," + encoded,
		"name":    file.Name,
		"size":    int64(len(data)),
		"type":    file.ContentType,
	}

	if width, height, ok := imageDimensions(data); ok {
		result["width"] = width
		result["height"] = height
	}

	return Succeeded(result), nil
}

// imageDimensions 只解析图片头获取尺寸
func imageDimensions(data []byte) (int, int, bool) {
	if len(data) == 0 || len(data) > maxDimensionProbeSize {
		return 0, 0, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
