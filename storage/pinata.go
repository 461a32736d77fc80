package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	pinataAPIURL     = "https://api.pinata.cloud"
	pinataGatewayURL = "https://gateway.pinata.cloud"
)

// PinataConfig Pinata IPFS 配置
type PinataConfig struct {
	APIKey     string `mapstructure:"apiKey"`
	SecretKey  string `mapstructure:"secretKey"`
	APIURL     string `mapstructure:"apiUrl"`
	GatewayURL string `mapstructure:"gatewayUrl"`
}

// PinataMetadata pinataMetadata 字段
type PinataMetadata struct {
	Name      string         `mapstructure:"name" json:"name,omitempty"`
	KeyValues map[string]any `mapstructure:"keyvalues" json:"keyvalues,omitempty"`
}

type pinataOptions struct {
	Metadata *PinataMetadata `mapstructure:"metadata"`
}

// PinataProvider Pinata IPFS 提供者
type PinataProvider struct {
	apiKey     string
	secretKey  string
	apiURL     string
	gatewayURL string
	client     *http.Client
}

// NewPinataProvider 创建 Pinata 提供者
func NewPinataProvider(cfg PinataConfig, client *http.Client) (*PinataProvider, error) {
	if err := requireKeys(TypePinata, "apiKey", cfg.APIKey, "secretKey", cfg.SecretKey); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	apiURL, gatewayURL := cfg.APIURL, cfg.GatewayURL
	if apiURL == "" {
		apiURL = pinataAPIURL
	}
	if gatewayURL == "" {
		gatewayURL = pinataGatewayURL
	}
	return &PinataProvider{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     client,
	}, nil
}

// Name 返回提供者名称
func (p *PinataProvider) Name() string {
	return string(TypePinata)
}

// UploadFile pin 文件到 IPFS
func (p *PinataProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o pinataOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	var fields []formField
	if o.Metadata != nil {
		meta, err := json.Marshal(o.Metadata)
		if err != nil {
			return nil, err
		}
		fields = append(fields, formField{name: "pinataMetadata", value: string(meta)})
	}

	body, contentType, err := multipartBody(fields, "file", file)
	if err != nil {
		return FailedErr(err), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		_ = body.Close()
		return FailedErr(err), nil
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", p.apiKey)
	req.Header.Set("pinata_secret_api_key", p.secretKey)

	status, respBody, err := doRequest(p.client, req)
	if err != nil {
		return FailedErr(err), nil
	}
	if !isSuccessStatus(status) {
		return Failed(errorMessage(respBody, "error")), nil
	}

	var data struct {
		IpfsHash  string `json:"IpfsHash"`
		PinSize   int64  `json:"PinSize"`
		Timestamp string `json:"Timestamp"`
	}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return FailedErr(err), nil
	}

	return Succeeded(map[string]any{
		"ipfsHash":   data.IpfsHash,
		"pinSize":    data.PinSize,
		"timestamp":  data.Timestamp,
		"gatewayUrl": p.gatewayURL + "/ipfs/" + data.IpfsHash,
		"name":       file.Name,
	}), nil
}
