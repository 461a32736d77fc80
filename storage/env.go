package storage

import (
	"os"
)

// LookupFunc 环境变量查找函数，签名与 os.LookupEnv 一致
type LookupFunc func(key string) (string, bool)

// ProviderFromEnv 从进程环境变量创建提供者
func ProviderFromEnv(kind ProviderType, factory *Factory) (UploadProvider, error) {
	return ProviderFromLookup(kind, factory, os.LookupEnv)
}

// ProviderFromLookup 从环境变量创建提供者
// 必填变量缺失或该类型不支持环境变量配置时返回 nil, nil
func ProviderFromLookup(kind ProviderType, factory *Factory, lookup LookupFunc) (UploadProvider, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	var cfg map[string]any
	switch kind {
	case TypeS3:
		endpoint, apiKey := get("S3_ENDPOINT"), get("S3_API_KEY")
		secretKey, bucket := get("S3_SECRET_KEY"), get("S3_BUCKET")
		if endpoint == "" || apiKey == "" || secretKey == "" || bucket == "" {
			return nil, nil
		}
		cfg = map[string]any{
			"baseUrl":    endpoint,
			"apiKey":     apiKey,
			"secretKey":  secretKey,
			"bucketName": bucket,
		}
	case TypeCloudinary:
		cloudName, apiKey := get("CLOUDINARY_CLOUD_NAME"), get("CLOUDINARY_API_KEY")
		if cloudName == "" || apiKey == "" {
			return nil, nil
		}
		cfg = map[string]any{
			"cloudName":    cloudName,
			"apiKey":       apiKey,
			"uploadPreset": get("CLOUDINARY_UPLOAD_PRESET"),
		}
	case TypeSupabase:
		url, key := get("SUPABASE_URL"), get("SUPABASE_ANON_KEY")
		if url == "" || key == "" {
			return nil, nil
		}
		bucket := get("SUPABASE_BUCKET")
		if bucket == "" {
			bucket = "uploads"
		}
		cfg = map[string]any{
			"supabaseUrl": url,
			"supabaseKey": key,
			"bucketName":  bucket,
		}
	default:
		return nil, nil
	}

	return factory.Create(ProviderConfig{Type: kind, Config: cfg})
}
