package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// RegistryConfig 注册表配置
type RegistryConfig struct {
	Providers    []ProviderConfig
	Extra        []UploadProvider // 已构造的提供者，例如来自环境变量
	Default      string
	Strategy     Strategy
	PrimaryIndex int
}

// Registry 已配置的命名提供者集合，另含由全部提供者组成的 multi
type Registry struct {
	providers   map[string]UploadProvider
	order       []string
	defaultName string
	multi       *MultiProvider
}

// NewRegistry 按配置创建全部提供者，任一失败即返回错误
func NewRegistry(factory *Factory, cfg RegistryConfig, logger logrus.FieldLogger) (*Registry, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &Registry{providers: make(map[string]UploadProvider, len(cfg.Providers))}
	members := make([]UploadProvider, 0, len(cfg.Providers))

	add := func(p UploadProvider, kind string) error {
		name := p.Name()
		if name == MultiProviderName {
			return fmt.Errorf("provider name '%s' is reserved", MultiProviderName)
		}
		if _, exists := r.providers[name]; exists {
			return fmt.Errorf("duplicate provider name '%s'", name)
		}
		r.providers[name] = p
		r.order = append(r.order, name)
		members = append(members, p)
		logger.WithFields(logrus.Fields{"name": name, "type": kind}).Info("Upload provider initialized")
		return nil
	}

	for _, pc := range cfg.Providers {
		p, err := factory.Create(pc)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider '%s': %w", pc.Name, err)
		}
		if err := add(p, string(pc.Type)); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Extra {
		if p == nil {
			continue
		}
		if err := add(p, p.Name()); err != nil {
			return nil, err
		}
	}

	if len(members) > 0 {
		multi, err := NewMultiProvider(members, cfg.Strategy, cfg.PrimaryIndex)
		if err != nil {
			return nil, err
		}
		r.multi = multi
	}

	r.defaultName = cfg.Default
	switch {
	case r.defaultName == "" && len(r.order) > 0:
		r.defaultName = r.order[0]
	case r.defaultName != "":
		if _, err := r.Get(r.defaultName); err != nil {
			return nil, fmt.Errorf("default provider '%s' is not available: %w", r.defaultName, err)
		}
	}
	if r.defaultName != "" {
		logger.WithField("name", r.defaultName).Info("Default upload provider set")
	}

	return r, nil
}

// Get 获取指定名称的提供者，空名称返回默认提供者
func (r *Registry) Get(name string) (UploadProvider, error) {
	if name == "" {
		name = r.defaultName
	}
	if name == MultiProviderName && r.multi != nil {
		return r.multi, nil
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrProviderNotFound, name)
	}
	return p, nil
}

// Names 按配置顺序返回提供者名称，不含 multi
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// DefaultName 默认提供者名称
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Multi 返回组合提供者，没有配置任何提供者时为 nil
func (r *Registry) Multi() *MultiProvider {
	return r.multi
}
