package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const cloudinaryAPIURL = "https://api.cloudinary.com"

// CloudinaryConfig Cloudinary 配置，使用 unsigned upload preset
type CloudinaryConfig struct {
	CloudName    string `mapstructure:"cloudName"`
	APIKey       string `mapstructure:"apiKey"`
	UploadPreset string `mapstructure:"uploadPreset"`
	APIURL       string `mapstructure:"apiUrl"`
}

func (c CloudinaryConfig) validate() error {
	return requireKeys(TypeCloudinary,
		"cloudName", c.CloudName,
		"apiKey", c.APIKey,
	)
}

type cloudinaryOptions struct {
	Preset       string `mapstructure:"preset"`
	Folder       string `mapstructure:"folder"`
	ResourceType string `mapstructure:"resourceType"`
}

type cloudinaryResponse struct {
	PublicID     string `json:"public_id"`
	URL          string `json:"url"`
	SecureURL    string `json:"secure_url"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type"`
	Bytes        int64  `json:"bytes"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	CreatedAt    string `json:"created_at"`
}

// CloudinaryProvider Cloudinary 提供者
type CloudinaryProvider struct {
	cloudName    string
	apiKey       string
	uploadPreset string
	apiURL       string
	client       *http.Client
}

// NewCloudinaryProvider 创建 Cloudinary 提供者
func NewCloudinaryProvider(cfg CloudinaryConfig, client *http.Client) (*CloudinaryProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = cloudinaryAPIURL
	}
	return &CloudinaryProvider{
		cloudName:    cfg.CloudName,
		apiKey:       cfg.APIKey,
		uploadPreset: cfg.UploadPreset,
		apiURL:       strings.TrimRight(apiURL, "/"),
		client:       client,
	}, nil
}

// Name 返回提供者名称
func (p *CloudinaryProvider) Name() string {
	return string(TypeCloudinary)
}

// UploadFile 上传到 Cloudinary
func (p *CloudinaryProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o cloudinaryOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	preset := o.Preset
	if preset == "" {
		preset = p.uploadPreset
	}
	resourceType := o.ResourceType
	if resourceType == "" {
		resourceType = "image"
	}

	fields := []formField{
		{name: "api_key", value: p.apiKey},
	}
	if preset != "" {
		fields = append(fields, formField{name: "upload_preset", value: preset})
	}
	if o.Folder != "" {
		fields = append(fields, formField{name: "folder", value: o.Folder})
	}

	body, contentType, err := multipartBody(fields, "file", file)
	if err != nil {
		return FailedErr(err), nil
	}

	url := fmt.Sprintf("%s/v1_1/%s/%s/upload", p.apiURL, p.cloudName, resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
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
		return Failed(errorMessage(respBody, "error.message", "error")), nil
	}

	var data cloudinaryResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return FailedErr(err), nil
	}

	return Succeeded(map[string]any{
		"publicId":     data.PublicID,
		"url":          data.URL,
		"secureUrl":    data.SecureURL,
		"format":       data.Format,
		"resourceType": data.ResourceType,
		"bytes":        data.Bytes,
		"width":        data.Width,
		"height":       data.Height,
		"createdAt":    data.CreatedAt,
		"name":         file.Name,
	}), nil
}
