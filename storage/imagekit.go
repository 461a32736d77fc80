package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ImageKitConfig ImageKit 配置
// AuthEndpoint 为调用方自己的签名服务，返回 signature/expire/token
type ImageKitConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	PublicKey    string `mapstructure:"publicKey"`
	AuthEndpoint string `mapstructure:"authEndpoint"`
}

type imageKitOptions struct {
	FileName       string         `mapstructure:"fileName"`
	Folder         string         `mapstructure:"folder"`
	Tags           []string       `mapstructure:"tags"`
	CustomMetadata map[string]any `mapstructure:"customMetadata"`
}

type imageKitAuth struct {
	Signature string      `json:"signature"`
	Expire    json.Number `json:"expire"`
	Token     string      `json:"token"`
}

type imageKitResponse struct {
	FileID       string `json:"fileId"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	FilePath     string `json:"filePath"`
	Size         int64  `json:"size"`
	FileType     string `json:"fileType"`
}

// ImageKitProvider ImageKit 提供者
type ImageKitProvider struct {
	endpoint     string
	publicKey    string
	authEndpoint string
	client       *http.Client
}

// NewImageKitProvider 创建 ImageKit 提供者
func NewImageKitProvider(cfg ImageKitConfig, client *http.Client) (*ImageKitProvider, error) {
	if err := requireKeys(TypeImageKit,
		"endpoint", cfg.Endpoint,
		"publicKey", cfg.PublicKey,
		"authEndpoint", cfg.AuthEndpoint,
	); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ImageKitProvider{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		publicKey:    cfg.PublicKey,
		authEndpoint: cfg.AuthEndpoint,
		client:       client,
	}, nil
}

// Name 返回提供者名称
func (p *ImageKitProvider) Name() string {
	return string(TypeImageKit)
}

// UploadFile 先获取签名参数再上传
func (p *ImageKitProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o imageKitOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	auth, err := p.authenticate(ctx)
	if err != nil {
		return FailedErr(err), nil
	}

	fileName := o.FileName
	if fileName == "" {
		fileName = file.Name
	}
	fields := []formField{
		{name: "publicKey", value: p.publicKey},
		{name: "signature", value: auth.Signature},
		{name: "expire", value: auth.Expire.String()},
		{name: "token", value: auth.Token},
		{name: "fileName", value: fileName},
	}
	if o.Folder != "" {
		fields = append(fields, formField{name: "folder", value: o.Folder})
	}
	if len(o.Tags) > 0 {
		fields = append(fields, formField{name: "tags", value: strings.Join(o.Tags, ",")})
	}
	if len(o.CustomMetadata) > 0 {
		meta, err := json.Marshal(o.CustomMetadata)
		if err != nil {
			return nil, err
		}
		fields = append(fields, formField{name: "customMetadata", value: string(meta)})
	}

	body, contentType, err := multipartBody(fields, "file", file)
	if err != nil {
		return FailedErr(err), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/v1/files/upload", body)
	if err != nil {
		_ = body.Close()
		return FailedErr(err), nil
	}
	req.Header.Set("Content-Type", contentType)

	status, respBody, err := doRequest(p.client, req)
	if err != nil {
		return FailedErr(err), nil
	}
	if !isSuccessStatus(status) {
		return Failed(errorMessage(respBody, "message")), nil
	}

	var data imageKitResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return FailedErr(err), nil
	}

	return Succeeded(map[string]any{
		"fileId":       data.FileID,
		"name":         data.Name,
		"url":          data.URL,
		"thumbnailUrl": data.ThumbnailURL,
		"filePath":     data.FilePath,
		"size":         data.Size,
		"fileType":     data.FileType,
	}), nil
}

// authenticate 签名参数每次上传都需要新的 token，不做缓存
func (p *ImageKitProvider) authenticate(ctx context.Context) (*imageKitAuth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.authEndpoint, nil)
	if err != nil {
		return nil, err
	}
	status, body, err := doRequest(p.client, req)
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(status) {
		return nil, errImageKitAuth
	}

	var auth imageKitAuth
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}
