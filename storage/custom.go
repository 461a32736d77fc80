package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// CustomAPIConfig 自定义上传接口配置
type CustomAPIConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Headers   map[string]string `mapstructure:"headers"`
	FieldName string            `mapstructure:"fieldName"`
}

// CustomAPIProvider 向任意 HTTP 接口提交 multipart 表单
// 上传参数逐项作为表单字段发送，响应 JSON 原样作为结果数据
type CustomAPIProvider struct {
	endpoint  string
	headers   map[string]string
	fieldName string
	client    *http.Client
}

// NewCustomAPIProvider 创建自定义接口提供者
func NewCustomAPIProvider(cfg CustomAPIConfig, client *http.Client) (*CustomAPIProvider, error) {
	if err := requireKeys(TypeCustom, "endpoint", cfg.Endpoint); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	fieldName := cfg.FieldName
	if fieldName == "" {
		fieldName = "file"
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &CustomAPIProvider{
		endpoint:  cfg.Endpoint,
		headers:   headers,
		fieldName: fieldName,
		client:    client,
	}, nil
}

// Name 返回提供者名称
func (p *CustomAPIProvider) Name() string {
	return string(TypeCustom)
}

// UploadFile 提交表单
func (p *CustomAPIProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]formField, 0, len(keys))
	for _, k := range keys {
		value, err := formValue(opts[k])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid upload option %q: %w", p.Name(), k, err)
		}
		fields = append(fields, formField{name: k, value: value})
	}

	body, contentType, err := multipartBody(fields, p.fieldName, file)
	if err != nil {
		return FailedErr(err), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		_ = body.Close()
		return FailedErr(err), nil
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", contentType)

	status, respBody, err := doRequest(p.client, req)
	if err != nil {
		return FailedErr(err), nil
	}
	if !isSuccessStatus(status) {
		return Failed(errorMessage(respBody, "message", "error")), nil
	}

	data := map[string]any{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &data); err != nil {
			return FailedErr(err), nil
		}
	}
	return Succeeded(data), nil
}

// formValue 字符串原样发送，其余类型编码为 JSON
func formValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
