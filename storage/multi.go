package storage

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Strategy 组合提供者的上传策略
type Strategy string

const (
	// StrategyAll 并发上传到全部提供者，至少一个成功即成功
	StrategyAll Strategy = "all"
	// StrategyFirstSuccess 按顺序尝试，返回第一个成功的结果
	StrategyFirstSuccess Strategy = "first-success"
	// StrategyPrimaryFallback 先尝试主提供者，失败后按顺序尝试其余提供者
	StrategyPrimaryFallback Strategy = "primary-fallback"
)

// MultiProviderName 组合提供者名称
const MultiProviderName = "multi"

// ParseStrategy 解析策略名称，空字符串视为 first-success
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyFirstSuccess, nil
	case StrategyAll, StrategyFirstSuccess, StrategyPrimaryFallback:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidMultiProvider, s)
	}
}

// MultiProvider 将多个提供者组合为一个
type MultiProvider struct {
	providers    []UploadProvider
	strategy     Strategy
	primaryIndex int
}

// NewMultiProvider 创建组合提供者
// primaryIndex 仅在 primary-fallback 策略下使用
func NewMultiProvider(providers []UploadProvider, strategy Strategy, primaryIndex int) (*MultiProvider, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no providers", ErrInvalidMultiProvider)
	}
	for i, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("%w: provider at index %d is nil", ErrInvalidMultiProvider, i)
		}
	}
	strategy, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	if primaryIndex < 0 || primaryIndex >= len(providers) {
		return nil, fmt.Errorf("%w: primary index %d out of range [0, %d)", ErrInvalidMultiProvider, primaryIndex, len(providers))
	}

	return &MultiProvider{
		providers:    append([]UploadProvider(nil), providers...),
		strategy:     strategy,
		primaryIndex: primaryIndex,
	}, nil
}

// Name 返回提供者名称
func (m *MultiProvider) Name() string {
	return MultiProviderName
}

// Strategy 返回当前策略
func (m *MultiProvider) Strategy() Strategy {
	return m.strategy
}

// Providers 返回成员提供者名称
func (m *MultiProvider) Providers() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// UploadFile 按策略上传
func (m *MultiProvider) UploadFile(ctx context.Context, file *File, opts Options) (*Result, error) {
	if err := checkFile(file); err != nil {
		return nil, err
	}

	switch m.strategy {
	case StrategyAll:
		return m.uploadAll(ctx, file, opts), nil
	case StrategyPrimaryFallback:
		return m.uploadPrimaryFallback(ctx, file, opts), nil
	default:
		res, failures := firstSuccess(ctx, m.providers, file, opts)
		if res != nil {
			return res, nil
		}
		return Failed("All providers failed: " + strings.Join(failures, ", ")), nil
	}
}

// outcome 单个提供者的上传结果
type outcome struct {
	result *Result
	err    error
}

func (o outcome) ok() bool {
	return o.err == nil && o.result != nil && o.result.Success
}

func (o outcome) reason() string {
	switch {
	case o.err != nil:
		return o.err.Error()
	case o.result == nil:
		return defaultFailureMessage
	case o.result.Error == "":
		return defaultFailureMessage
	default:
		return o.result.Error
	}
}

// attempt 调用单个提供者，panic 视为错误
func attempt(ctx context.Context, p UploadProvider, file *File, opts Options) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = outcome{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	res, err := p.UploadFile(ctx, file, opts)
	return outcome{result: res, err: err}
}

func (m *MultiProvider) uploadAll(ctx context.Context, file *File, opts Options) *Result {
	outcomes := make([]outcome, len(m.providers))

	// 每个成员的失败都记录在 outcomes 中，不中断其他成员
	var g errgroup.Group
	for i, p := range m.providers {
		g.Go(func() error {
			outcomes[i] = attempt(ctx, p, file, opts)
			return nil
		})
	}
	_ = g.Wait()

	var (
		results  []map[string]any
		failures []string
	)
	for i, o := range outcomes {
		if o.ok() {
			results = append(results, o.result.Data)
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %s", m.providers[i].Name(), o.reason()))
	}

	if len(results) == 0 {
		return Failed("All providers failed: " + strings.Join(failures, ", "))
	}

	return Succeeded(map[string]any{
		"results":      results,
		"primary":      results[0],
		"successCount": len(results),
		"failureCount": len(failures),
	})
}

func (m *MultiProvider) uploadPrimaryFallback(ctx context.Context, file *File, opts Options) *Result {
	primary := m.providers[m.primaryIndex]
	first := attempt(ctx, primary, file, opts)
	if first.ok() {
		return first.result
	}

	rest := make([]UploadProvider, 0, len(m.providers)-1)
	for i, p := range m.providers {
		if i != m.primaryIndex {
			rest = append(rest, p)
		}
	}

	res, failures := firstSuccess(ctx, rest, file, opts)
	if res != nil {
		return res
	}
	failures = append([]string{fmt.Sprintf("%s: %s", primary.Name(), first.reason())}, failures...)
	return Failed("All fallback providers failed: " + strings.Join(failures, ", "))
}

// firstSuccess 依次尝试，返回第一个成功结果；全部失败时返回每个提供者的失败原因
func firstSuccess(ctx context.Context, providers []UploadProvider, file *File, opts Options) (*Result, []string) {
	failures := make([]string, 0, len(providers))
	for _, p := range providers {
		o := attempt(ctx, p, file, opts)
		if o.ok() {
			return o.result, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %s", p.Name(), o.reason()))
	}
	return nil, failures
}
