package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aevrHQ/ui/utils/generator"
)

// S3Config S3 兼容存储配置
// BaseURL 可带协议，例如 https://s3.us-east-1.amazonaws.com 或 http://127.0.0.1:9000
type S3Config struct {
	BaseURL    string `mapstructure:"baseUrl"`
	APIKey     string `mapstructure:"apiKey"`
	SecretKey  string `mapstructure:"secretKey"`
	BucketName string `mapstructure:"bucketName"`
	Region     string `mapstructure:"region"`
	PublicURL  string `mapstructure:"publicUrl"`
}

func (c S3Config) validate() error {
	return requireKeys(TypeS3,
		"baseUrl", c.BaseURL,
		"apiKey", c.APIKey,
		"secretKey", c.SecretKey,
		"bucketName", c.BucketName,
	)
}

type s3Options struct {
	Key         string            `mapstructure:"key"`
	ContentType string            `mapstructure:"contentType"`
	Metadata    map[string]string `mapstructure:"metadata"`
}

// S3Provider S3 兼容存储提供者
type S3Provider struct {
	client     *minio.Client
	bucketName string
	publicURL  string
	now        func() time.Time
}

// parseEndpoint 拆分出 minio 需要的 host 与 SSL 标记
func parseEndpoint(baseURL string) (string, bool, error) {
	if !strings.Contains(baseURL, "://") {
		return strings.TrimRight(baseURL, "/"), true, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", false, fmt.Errorf("%w for %s: invalid baseUrl: %v", ErrInvalidConfig, TypeS3, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("%w for %s: baseUrl has no host", ErrInvalidConfig, TypeS3)
	}
	return u.Host, u.Scheme == "https", nil
}

// NewS3Provider 创建 S3 提供者，构造时不访问网络
func NewS3Provider(cfg S3Config, transport http.RoundTripper) (*S3Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	endpoint, secure, err := parseEndpoint(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.APIKey, cfg.SecretKey, ""),
		Secure:    secure,
		Region:    region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.BucketName)
	}

	return &S3Provider{
		client:     client,
		bucketName: cfg.BucketName,
		publicURL:  strings.TrimRight(publicURL, "/"),
		now:        time.Now,
	}, nil
}

// Name 返回提供者名称
func (p *S3Provider) Name() string {
	return string(TypeS3)
}

// UploadFile PutObject 上传
func (p *S3Provider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o s3Options
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	key := strings.TrimLeft(o.Key, "/")
	if key == "" {
		key = generator.UploadPath(file.Name, p.now())
	}
	contentType := o.ContentType
	if contentType == "" {
		contentType = file.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body, err := file.Open()
	if err != nil {
		return FailedErr(err), nil
	}
	defer func() { _ = body.Close() }()

	size := file.Size
	if size <= 0 {
		size = -1
	}

	info, err := p.client.PutObject(ctx, p.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: o.Metadata,
	})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Message != "" {
			return Failed(resp.Message), nil
		}
		return Failed(fmt.Sprintf("failed to upload object '%s': %v", key, err)), nil
	}

	return Succeeded(map[string]any{
		"key":       info.Key,
		"bucket":    info.Bucket,
		"etag":      info.ETag,
		"versionId": info.VersionID,
		"size":      info.Size,
		"url":       p.publicURL + "/" + key,
		"name":      file.Name,
	}), nil
}
