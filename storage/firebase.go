package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aevrHQ/ui/utils/generator"
)

const firebaseAPIURL = "https://firebasestorage.googleapis.com"

// FirebaseConfig Firebase Storage 配置
// AccessToken 可选，为空时依赖 bucket 的安全规则允许匿名写入
type FirebaseConfig struct {
	BucketName  string `mapstructure:"bucketName"`
	AccessToken string `mapstructure:"accessToken"`
	APIURL      string `mapstructure:"apiUrl"`
}

type firebaseOptions struct {
	Path     string            `mapstructure:"path"`
	Metadata map[string]string `mapstructure:"metadata"`
}

type firebaseObject struct {
	Name           string `json:"name"`
	Bucket         string `json:"bucket"`
	Size           string `json:"size"`
	TimeCreated    string `json:"timeCreated"`
	DownloadTokens string `json:"downloadTokens"`
}

// FirebaseProvider Firebase Storage 提供者，使用 REST 接口
type FirebaseProvider struct {
	bucketName  string
	accessToken string
	apiURL      string
	client      *http.Client
	now         func() time.Time
}

// NewFirebaseProvider 创建 Firebase 提供者
func NewFirebaseProvider(cfg FirebaseConfig, client *http.Client) (*FirebaseProvider, error) {
	if err := requireKeys(TypeFirebase, "bucketName", cfg.BucketName); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = firebaseAPIURL
	}
	return &FirebaseProvider{
		bucketName:  cfg.BucketName,
		accessToken: cfg.AccessToken,
		apiURL:      strings.TrimRight(apiURL, "/"),
		client:      client,
		now:         time.Now,
	}, nil
}

// Name 返回提供者名称
func (p *FirebaseProvider) Name() string {
	return string(TypeFirebase)
}

// UploadFile 上传对象，带 metadata 时使用 multipart/related
func (p *FirebaseProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}
	var o firebaseOptions
	if err := decodeOptions(p.Name(), opts, &o); err != nil {
		return nil, err
	}

	objectPath := strings.TrimLeft(o.Path, "/")
	if objectPath == "" {
		objectPath = generator.UploadPath(file.Name, p.now())
	}

	endpoint := fmt.Sprintf("%s/v0/b/%s/o?name=%s", p.apiURL, p.bucketName, url.QueryEscape(objectPath))

	var (
		body        io.ReadCloser
		contentType string
		err         error
	)
	if len(o.Metadata) > 0 {
		body, contentType, err = firebaseRelatedBody(objectPath, file, o.Metadata)
	} else {
		body, err = file.Open()
		contentType = file.ContentType
	}
	if err != nil {
		return FailedErr(err), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		_ = body.Close()
		return FailedErr(err), nil
	}
	req.Header.Set("Content-Type", contentType)
	if len(o.Metadata) > 0 {
		req.Header.Set("X-Goog-Upload-Protocol", "multipart")
	}
	if p.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.accessToken)
	}

	status, respBody, err := doRequest(p.client, req)
	if err != nil {
		return FailedErr(err), nil
	}
	if !isSuccessStatus(status) {
		return Failed(errorMessage(respBody, "error.message", "error")), nil
	}

	var obj firebaseObject
	if err := json.Unmarshal(respBody, &obj); err != nil {
		return FailedErr(err), nil
	}

	size, _ := strconv.ParseInt(obj.Size, 10, 64)
	downloadURL := fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media", p.apiURL, obj.Bucket, url.PathEscape(obj.Name))
	if token := firstToken(obj.DownloadTokens); token != "" {
		downloadURL += "&token=" + token
	}

	return Succeeded(map[string]any{
		"path":        objectPath,
		"downloadURL": downloadURL,
		"fullPath":    obj.Name,
		"name":        lastSegment(obj.Name),
		"bucket":      obj.Bucket,
		"size":        size,
		"timeCreated": obj.TimeCreated,
	}), nil
}

// firebaseRelatedBody 构建 metadata + 文件内容的 multipart/related 请求体
func firebaseRelatedBody(objectPath string, file *File, metadata map[string]string) (io.ReadCloser, string, error) {
	content, err := file.ReadAll()
	if err != nil {
		return nil, "", err
	}

	meta, err := json.Marshal(map[string]any{
		"name":        objectPath,
		"contentType": file.ContentType,
		"metadata":    metadata,
	})
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := make(textproto.MIMEHeader)
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := mw.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(meta); err != nil {
		return nil, "", err
	}

	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Type", file.ContentType)
	part, err = mw.CreatePart(fileHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return io.NopCloser(&buf), "multipart/related; boundary=" + mw.Boundary(), nil
}

func firstToken(tokens string) string {
	if i := strings.IndexByte(tokens, ','); i >= 0 {
		return tokens[:i]
	}
	return tokens
}

func lastSegment(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
