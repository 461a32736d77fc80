package utils

import (
	"os"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// NewLogger 创建 logrus 日志器
// level 解析失败时使用 info；format 为 json 时输出 JSON，否则输出文本
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// SanitizeLogMessage 去除不可打印字符，保留换行与制表符
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == '\n' || r == '\t' {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeFileName 清理客户端提交的文件名后用于日志，过长时截断
func SanitizeFileName(name string) string {
	if len(name) > 128 {
		name = name[:128] + "..."
	}
	return SanitizeLogMessage(name)
}
