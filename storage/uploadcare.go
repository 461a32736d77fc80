package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

const (
	uploadcareAPIURL = "https://upload.uploadcare.com"
	uploadcareCDNURL = "https://ucarecdn.com"
)

// UploadcareConfig Uploadcare 配置
type UploadcareConfig struct {
	PublicKey string `mapstructure:"publicKey"`
	APIURL    string `mapstructure:"apiUrl"`
	CDNURL    string `mapstructure:"cdnUrl"`
}

type uploadcareOptions struct {
	Store    *bool             `mapstructure:"store"`
	Metadata map[string]string `mapstructure:"metadata"`
}

// UploadcareProvider Uploadcare 提供者
type UploadcareProvider struct {
	publicKey string
	apiURL    string
	cdnURL    string
	client    *http.Client
}

// NewUploadcareProvider 创建 Uploadcare 提供者
func NewUploadcareProvider(cfg UploadcareConfig, client *http.Client) (*UploadcareProvider, error) {
	if err := requireKeys(TypeUploadcare, "publicKey", cfg.PublicKey); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	apiURL, cdnURL := cfg.APIURL, cfg.CDNURL
	if apiURL == "" {
		apiURL = uploadcareAPIURL
	}
	if cdnURL == "" {
		cdnURL = uploadcareCDNURL
	}
	return &UploadcareProvider{
		publicKey: cfg.PublicKey,
		apiURL:    strings.TrimRight(apiURL, "/"),
		cdnURL:    strings.TrimRight(cdnURL, "/"),
		client:    client,
	}, nil
}

// Name 返回提供者名称
func (p *UploadcareProvider) Name() string {
	return string(TypeUploadcare)
}

// UploadFile 通过 direct upload 接口上传
func (p *UploadcareProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o uploadcareOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	store := "1"
	if o.Store != nil && !*o.Store {
		store = "0"
	}
	fields := []formField{
		{name: "UPLOADCARE_PUB_KEY", value: p.publicKey},
		{name: "UPLOADCARE_STORE", value: store},
	}

	keys := make([]string, 0, len(o.Metadata))
	for k := range o.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, formField{name: "metadata[" + k + "]", value: o.Metadata[k]})
	}

	body, contentType, err := multipartBody(fields, "file", file)
	if err != nil {
		return FailedErr(err), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/base/", body)
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
		return Failed(errorMessage(respBody, "error.content", "error")), nil
	}

	var data struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return FailedErr(err), nil
	}

	return Succeeded(map[string]any{
		"uuid":        data.File,
		"cdnUrl":      p.cdnURL + "/" + data.File + "/",
		"originalUrl": p.cdnURL + "/" + data.File + "/-/preview/",
		"name":        file.Name,
		"size":        file.Size,
	}), nil
}
