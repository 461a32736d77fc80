package generator

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// UploadPrefix 默认对象路径前缀
const UploadPrefix = "uploads"

// UploadPath 生成默认对象路径 uploads/{毫秒时间戳}-{文件名}
// 文件名中的目录部分会被去掉
func UploadPath(name string, t time.Time) string {
	return fmt.Sprintf("%s/%d-%s", UploadPrefix, t.UnixMilli(), baseName(name))
}

func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return "file"
	}
	return base
}
