package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/aevrHQ/ui/cache"
)

const (
	backblazeAPIURL = "https://api.backblazeb2.com"

	// 授权 token 有效期为 24 小时，提前一小时过期
	backblazeAuthTTL = 23 * time.Hour

	backblazeAuthTimeout = 30 * time.Second
)

// BackblazeConfig Backblaze B2 配置
type BackblazeConfig struct {
	ApplicationKeyID string `mapstructure:"applicationKeyId"`
	ApplicationKey   string `mapstructure:"applicationKey"`
	BucketID         string `mapstructure:"bucketId"`
	APIURL           string `mapstructure:"apiUrl"`
}

func (c BackblazeConfig) validate() error {
	return requireKeys(TypeBackblaze,
		"applicationKeyId", c.ApplicationKeyID,
		"applicationKey", c.ApplicationKey,
		"bucketId", c.BucketID,
	)
}

type backblazeOptions struct {
	FileName    string `mapstructure:"fileName"`
	ContentType string `mapstructure:"contentType"`
}

type backblazeAuthorization struct {
	AuthorizationToken string `json:"authorizationToken"`
	APIURL             string `json:"apiUrl"`
}

type backblazeUploadURL struct {
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

type backblazeUploadResponse struct {
	FileID          string `json:"fileId"`
	FileName        string `json:"fileName"`
	AccountID       string `json:"accountId"`
	BucketID        string `json:"bucketId"`
	ContentLength   int64  `json:"contentLength"`
	UploadTimestamp int64  `json:"uploadTimestamp"`
}

// BackblazeProvider Backblaze B2 提供者
// 上传分三步：授权账号、获取上传地址、上传文件；账号授权结果可缓存
type BackblazeProvider struct {
	keyID    string
	key      string
	bucketID string
	apiURL   string
	client   *http.Client
	cache    cache.Provider
	logger   logrus.FieldLogger

	authGroup singleflight.Group
}

// NewBackblazeProvider 创建 Backblaze 提供者，authCache 可为空
func NewBackblazeProvider(cfg BackblazeConfig, client *http.Client, authCache cache.Provider, logger logrus.FieldLogger) (*BackblazeProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = backblazeAPIURL
	}
	return &BackblazeProvider{
		keyID:    cfg.ApplicationKeyID,
		key:      cfg.ApplicationKey,
		bucketID: cfg.BucketID,
		apiURL:   strings.TrimRight(apiURL, "/"),
		client:   client,
		cache:    authCache,
		logger:   logger.WithField("provider", string(TypeBackblaze)),
	}, nil
}

// Name 返回提供者名称
func (p *BackblazeProvider) Name() string {
	return string(TypeBackblaze)
}

// UploadFile 上传到 B2 bucket
func (p *BackblazeProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o backblazeOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	auth, err := p.authorize(ctx)
	if err != nil {
		return FailedErr(err), nil
	}

	target, failure := p.getUploadURL(ctx, auth)
	if failure != nil {
		return failure, nil
	}

	fileName := o.FileName
	if fileName == "" {
		fileName = file.Name
	}
	contentType := o.ContentType
	if contentType == "" {
		contentType = file.ContentType
	}

	body, err := file.Open()
	if err != nil {
		return FailedErr(err), nil
	}
	var reqBody io.Reader = body
	if file.Size == 0 {
		// 零长度时显式发送 Content-Length: 0，避免分块编码
		_ = body.Close()
		reqBody = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.UploadURL, reqBody)
	if err != nil {
		_ = body.Close()
		return FailedErr(err), nil
	}
	req.ContentLength = file.Size
	req.Header.Set("Authorization", target.AuthorizationToken)
	req.Header.Set("X-Bz-File-Name", encodeB2FileName(fileName))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Bz-Content-Sha1", "unverified")

	status, respBody, err := doRequest(p.client, req)
	if err != nil {
		return FailedErr(err), nil
	}
	if !isSuccessStatus(status) {
		return Failed(errorMessage(respBody, "message")), nil
	}

	var data backblazeUploadResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return FailedErr(err), nil
	}

	return Succeeded(map[string]any{
		"fileId":          data.FileID,
		"fileName":        data.FileName,
		"accountId":       data.AccountID,
		"bucketId":        data.BucketID,
		"contentLength":   data.ContentLength,
		"uploadTimestamp": data.UploadTimestamp,
	}), nil
}

func (p *BackblazeProvider) cacheKey() string {
	return cache.BackblazeAuth.Build(p.keyID)
}

// authorize 获取账号授权，并发请求合并为一次
func (p *BackblazeProvider) authorize(ctx context.Context) (*backblazeAuthorization, error) {
	if p.cache != nil {
		var cached backblazeAuthorization
		if err := p.cache.Get(ctx, p.cacheKey(), &cached); err == nil && cached.AuthorizationToken != "" {
			return &cached, nil
		} else if err != nil && !cache.IsCacheMiss(err) {
			p.logger.WithError(err).Warn("failed to read cached authorization")
		}
	}

	// 合并的授权请求不受单个调用方取消影响，每个调用方只按自己的 ctx 放弃等待
	ch := p.authGroup.DoChan(p.keyID, func() (interface{}, error) {
		authCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backblazeAuthTimeout)
		defer cancel()
		return p.authorizeAccount(authCtx)
	})
	var shared singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case shared = <-ch:
	}
	if shared.Err != nil {
		return nil, shared.Err
	}
	auth := shared.Val.(*backblazeAuthorization)

	if p.cache != nil {
		if err := p.cache.Set(ctx, p.cacheKey(), auth, backblazeAuthTTL); err != nil {
			p.logger.WithError(err).Warn("failed to cache authorization")
		}
	}
	return auth, nil
}

func (p *BackblazeProvider) authorizeAccount(ctx context.Context) (*backblazeAuthorization, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/b2api/v2/b2_authorize_account", nil)
	if err != nil {
		return nil, err
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(p.keyID + ":" + p.key))
	req.Header.Set("Authorization", "Basic "+credentials)

	status, body, err := doRequest(p.client, req)
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(status) {
		return nil, errBackblazeAuth
	}

	var auth backblazeAuthorization
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func (p *BackblazeProvider) getUploadURL(ctx context.Context, auth *backblazeAuthorization) (*backblazeUploadURL, *Result) {
	payload, err := json.Marshal(map[string]string{"bucketId": p.bucketID})
	if err != nil {
		return nil, FailedErr(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(auth.APIURL, "/")+"/b2api/v2/b2_get_upload_url", bytes.NewReader(payload))
	if err != nil {
		return nil, FailedErr(err)
	}
	req.Header.Set("Authorization", auth.AuthorizationToken)
	req.Header.Set("Content-Type", "application/json")

	status, body, err := doRequest(p.client, req)
	if err != nil {
		return nil, FailedErr(err)
	}
	if status == http.StatusUnauthorized && p.cache != nil {
		// 授权已失效，下次上传重新授权
		if err := p.cache.Delete(ctx, p.cacheKey()); err != nil {
			p.logger.WithError(err).Warn("failed to evict cached authorization")
		}
	}
	if !isSuccessStatus(status) {
		return nil, Failed(errorMessage(body, "message"))
	}

	var target backblazeUploadURL
	if err := json.Unmarshal(body, &target); err != nil {
		return nil, FailedErr(err)
	}
	return &target, nil
}

// encodeB2FileName 按段百分号编码，保留路径分隔符
func encodeB2FileName(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
