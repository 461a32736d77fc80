package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/aevrHQ/ui/utils"
)

// UploadProvider 上传提供者接口 - 所有存储后端适配器的唯一扩展点
//
// UploadFile 对普通的后端失败（HTTP 错误状态、校验失败、网络异常、响应解析失败）
// 不返回 error，而是返回 Failed 结果；error 仅用于调用方的编程错误。
type UploadProvider interface {
	// Name 返回提供者名称，在一个组合内唯一
	Name() string

	// UploadFile 上传文件
	UploadFile(ctx context.Context, file *File, opts Options) (*Result, error)
}

// Options 适配器相关的上传参数，原样透传
type Options map[string]any

// ErrNilFile 调用方传入了空文件
var ErrNilFile = errors.New("storage: file is nil")

// File 可重复打开的二进制文件
// 同一个文件可能被扇出到多个提供者，因此每次读取都需要重新 Open
type File struct {
	Name        string
	Size        int64
	ContentType string

	open func() (io.ReadCloser, error)
}

// NewFile 从内存数据创建文件
func NewFile(name, contentType string, data []byte) *File {
	if contentType == "" {
		contentType = utils.DetectContentType(name, data)
	}
	return &File{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// OpenLocalFile 从本地磁盘路径创建文件，内容在每次 Open 时读取
func OpenLocalFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat '%s': %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	contentType, err := utils.SniffContentType(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	return &File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromMultipart 从 multipart 表单文件创建文件
func FromMultipart(fh *multipart.FileHeader) *File {
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &File{
		Name:        filepath.Base(fh.Filename),
		Size:        fh.Size,
		ContentType: contentType,
		open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Open 打开文件内容，调用方负责关闭
func (f *File) Open() (io.ReadCloser, error) {
	if f == nil || f.open == nil {
		return nil, ErrNilFile
	}
	return f.open()
}

// ReadAll 读取全部内容
func (f *File) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Result 上传结果，Success 为 true 时只有 Data 有效，否则只有 Error 有效
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Succeeded 成功结果
func Succeeded(data map[string]any) *Result {
	if data == nil {
		data = map[string]any{}
	}
	return &Result{Success: true, Data: data}
}

// Failed 失败结果
func Failed(message string) *Result {
	if message == "" {
		message = defaultFailureMessage
	}
	return &Result{Success: false, Error: message}
}

// FailedErr 将异常转换为失败结果
func FailedErr(err error) *Result {
	return Failed(err.Error())
}

const defaultFailureMessage = "Upload failed"

func checkFile(file *File) error {
	if file == nil || file.open == nil {
		return ErrNilFile
	}
	return nil
}
