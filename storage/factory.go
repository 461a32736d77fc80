package storage

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aevrHQ/ui/cache"
)

// ProviderType 提供者类型
type ProviderType string

const (
	TypeS3         ProviderType = "s3"
	TypeCloudinary ProviderType = "cloudinary"
	TypeSupabase   ProviderType = "supabase"
	TypeFirebase   ProviderType = "firebase"
	TypeUploadcare ProviderType = "uploadcare"
	TypePinata     ProviderType = "pinata"
	TypeImageKit   ProviderType = "imagekit"
	TypeBackblaze  ProviderType = "backblaze"
	TypeBase64     ProviderType = "base64"
	TypeCustom     ProviderType = "custom"
	TypeWebDAV     ProviderType = "webdav"
	TypeLocal      ProviderType = "local"
)

// ProviderConfig 提供者配置
// Name 为空时使用类型名；同一类型配置多次时用 Name 区分
type ProviderConfig struct {
	Name   string         `mapstructure:"name" json:"name"`
	Type   ProviderType   `mapstructure:"type" json:"type"`
	Config map[string]any `mapstructure:"config" json:"config,omitempty"`
}

// Deps 适配器共享的依赖
type Deps struct {
	HTTPClient *http.Client
	Cache      cache.Provider
	Logger     logrus.FieldLogger
}

// Constructor 从配置 map 构造提供者
type Constructor func(cfg map[string]any, deps Deps) (UploadProvider, error)

// Factory 提供者工厂 - 类型到构造函数的注册表
type Factory struct {
	mu           sync.RWMutex
	constructors map[ProviderType]Constructor
	deps         Deps
}

// NewFactory 创建工厂并注册全部内置适配器
func NewFactory(deps Deps) *Factory {
	if deps.HTTPClient == nil {
		deps.HTTPClient = NewHTTPClient(2 * time.Minute)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	f := &Factory{
		constructors: make(map[ProviderType]Constructor),
		deps:         deps,
	}
	for t, ctor := range builtinConstructors() {
		f.constructors[t] = ctor
	}
	return f
}

// Register 注册或覆盖某个类型的构造函数
func (f *Factory) Register(t ProviderType, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[t] = ctor
}

// Types 返回已注册的类型，按名称排序
func (f *Factory) Types() []ProviderType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]ProviderType, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Create 按类型创建提供者
func (f *Factory) Create(cfg ProviderConfig) (UploadProvider, error) {
	f.mu.RLock()
	ctor, ok := f.constructors[cfg.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Type)
	}

	provider, err := ctor(cfg.Config, f.deps)
	if err != nil {
		return nil, err
	}
	if cfg.Name != "" && cfg.Name != provider.Name() {
		provider = &namedProvider{UploadProvider: provider, name: cfg.Name}
	}
	return provider, nil
}

// namedProvider 以配置名称替换适配器的默认名称
type namedProvider struct {
	UploadProvider
	name string
}

func (p *namedProvider) Name() string {
	return p.name
}

func builtinConstructors() map[ProviderType]Constructor {
	return map[ProviderType]Constructor{
		TypeS3: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg S3Config
			if err := decodeConfig(TypeS3, raw, &cfg); err != nil {
				return nil, err
			}
			return NewS3Provider(cfg, deps.HTTPClient.Transport)
		},
		TypeCloudinary: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg CloudinaryConfig
			if err := decodeConfig(TypeCloudinary, raw, &cfg); err != nil {
				return nil, err
			}
			return NewCloudinaryProvider(cfg, deps.HTTPClient)
		},
		TypeSupabase: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg SupabaseConfig
			if err := decodeConfig(TypeSupabase, raw, &cfg); err != nil {
				return nil, err
			}
			return NewSupabaseProvider(cfg, deps.HTTPClient)
		},
		TypeFirebase: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg FirebaseConfig
			if err := decodeConfig(TypeFirebase, raw, &cfg); err != nil {
				return nil, err
			}
			return NewFirebaseProvider(cfg, deps.HTTPClient)
		},
		TypeUploadcare: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg UploadcareConfig
			if err := decodeConfig(TypeUploadcare, raw, &cfg); err != nil {
				return nil, err
			}
			return NewUploadcareProvider(cfg, deps.HTTPClient)
		},
		TypePinata: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg PinataConfig
			if err := decodeConfig(TypePinata, raw, &cfg); err != nil {
				return nil, err
			}
			return NewPinataProvider(cfg, deps.HTTPClient)
		},
		TypeImageKit: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg ImageKitConfig
			if err := decodeConfig(TypeImageKit, raw, &cfg); err != nil {
				return nil, err
			}
			return NewImageKitProvider(cfg, deps.HTTPClient)
		},
		TypeBackblaze: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg BackblazeConfig
			if err := decodeConfig(TypeBackblaze, raw, &cfg); err != nil {
				return nil, err
			}
			return NewBackblazeProvider(cfg, deps.HTTPClient, deps.Cache, deps.Logger)
		},
		TypeBase64: func(map[string]any, Deps) (UploadProvider, error) {
			return NewBase64Provider(), nil
		},
		TypeCustom: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg CustomAPIConfig
			if err := decodeConfig(TypeCustom, raw, &cfg); err != nil {
				return nil, err
			}
			return NewCustomAPIProvider(cfg, deps.HTTPClient)
		},
		TypeWebDAV: func(raw map[string]any, deps Deps) (UploadProvider, error) {
			var cfg WebDAVConfig
			if err := decodeConfig(TypeWebDAV, raw, &cfg); err != nil {
				return nil, err
			}
			return NewWebDAVProvider(cfg, deps.HTTPClient.Transport)
		},
		TypeLocal: func(raw map[string]any, _ Deps) (UploadProvider, error) {
			var cfg LocalConfig
			if err := decodeConfig(TypeLocal, raw, &cfg); err != nil {
				return nil, err
			}
			return NewLocalProvider(cfg)
		},
	}
}
