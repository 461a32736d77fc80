package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// maxResponseSize 后端响应体读取上限
const maxResponseSize = 10 << 20

// NewHTTPClient 创建适配器共享的 HTTP 客户端
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type formField struct {
	name  string
	value string
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody 以流的方式构建 multipart 请求体
// http.Client.Do 在任何情况下都会关闭请求体，写协程随之退出
func multipartBody(fields []formField, fileField string, file *File) (io.ReadCloser, string, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file '%s': %w", file.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer func() { _ = rc.Close() }()

		err := writeMultipart(mw, fields, fileField, file, rc)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType(), nil
}

func writeMultipart(mw *multipart.Writer, fields []formField, fileField string, file *File, content io.Reader) error {
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(fileField), quoteEscaper.Replace(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, content)
	return err
}

// doRequest 执行请求并读取响应体
func doRequest(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// errorMessage 从后端错误响应中提取错误信息，路径形如 "error.message"
// 提取不到时返回通用的失败信息
func errorMessage(body []byte, paths ...string) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return defaultFailureMessage
	}

	for _, p := range paths {
		if msg := lookupMessage(payload, strings.Split(p, ".")); msg != "" {
			return msg
		}
	}
	return defaultFailureMessage
}

func lookupMessage(payload map[string]any, keys []string) string {
	var cur any = payload
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[k]
	}

	switch v := cur.(type) {
	case string:
		return v
	case map[string]any:
		for _, k := range []string{"message", "reason", "details", "content"} {
			if s, ok := v[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
