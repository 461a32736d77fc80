package utils

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const sniffLen = 512

// SniffContentType 读取流的前 512 字节判断类型，之后将流重置到开头
func SniffContentType(stream io.ReadSeeker) (string, error) {
	buffer := make([]byte, sniffLen)

	n, err := io.ReadFull(stream, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read stream for mime sniffing: %w", err)
	}

	contentType := http.DetectContentType(buffer[:n])

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek stream back to start after sniffing: %w", err)
	}

	return contentType, nil
}

// DetectContentType 根据内容判断类型，内容无法识别时按扩展名推断
func DetectContentType(name string, data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	sniffed := http.DetectContentType(data)
	if !isGenericType(sniffed) {
		return sniffed
	}
	if byExt := mime.TypeByExtension(GetExtensionFromFilename(name)); byExt != "" {
		return byExt
	}
	return sniffed
}

// isGenericType 嗅探结果无法区分具体格式
func isGenericType(contentType string) bool {
	base := strings.TrimSpace(strings.Split(contentType, ";")[0])
	return base == "application/octet-stream" || base == "text/plain"
}

// GetExtensionFromFilename 从文件名获取扩展名（小写）
func GetExtensionFromFilename(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
