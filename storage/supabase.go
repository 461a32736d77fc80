package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aevrHQ/ui/utils/generator"
)

// SupabaseConfig Supabase Storage 配置
type SupabaseConfig struct {
	URL        string `mapstructure:"supabaseUrl"`
	Key        string `mapstructure:"supabaseKey"`
	BucketName string `mapstructure:"bucketName"`
}

func (c SupabaseConfig) validate() error {
	return requireKeys(TypeSupabase,
		"supabaseUrl", c.URL,
		"supabaseKey", c.Key,
		"bucketName", c.BucketName,
	)
}

type supabaseOptions struct {
	Path   string `mapstructure:"path"`
	Upsert bool   `mapstructure:"upsert"`
}

// SupabaseProvider Supabase Storage 提供者
type SupabaseProvider struct {
	baseURL    string
	key        string
	bucketName string
	client     *http.Client
	now        func() time.Time
}

// NewSupabaseProvider 创建 Supabase 提供者
func NewSupabaseProvider(cfg SupabaseConfig, client *http.Client) (*SupabaseProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		key:        cfg.Key,
		bucketName: cfg.BucketName,
		client:     client,
		now:        time.Now,
	}, nil
}

// Name 返回提供者名称
func (p *SupabaseProvider) Name() string {
	return string(TypeSupabase)
}

// UploadFile 上传到 Supabase bucket
func (p *SupabaseProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o supabaseOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	objectPath := strings.TrimLeft(o.Path, "/")
	if objectPath == "" {
		objectPath = generator.UploadPath(file.Name, p.now())
	}

	body, err := file.Open()
	if err != nil {
		return FailedErr(err), nil
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", p.baseURL, p.bucketName, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		_ = body.Close()
		return FailedErr(err), nil
	}
	req.ContentLength = file.Size
	req.Header.Set("Authorization", "Bearer "+p.key)
	req.Header.Set("Content-Type", file.ContentType)
	req.Header.Set("x-upsert", strconv.FormatBool(o.Upsert))

	status, respBody, err := doRequest(p.client, req)
	if err != nil {
		return FailedErr(err), nil
	}
	if !isSuccessStatus(status) {
		return Failed(errorMessage(respBody, "message", "error")), nil
	}

	return Succeeded(map[string]any{
		"path":      objectPath,
		"fullPath":  p.bucketName + "/" + objectPath,
		"publicUrl": fmt.Sprintf("%s/storage/v1/object/public/%s/%s", p.baseURL, p.bucketName, objectPath),
		"name":      file.Name,
		"size":      file.Size,
	}), nil
}
