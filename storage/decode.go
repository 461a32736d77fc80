package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrInvalidConfig 提供者配置缺少必填项或类型不匹配
var ErrInvalidConfig = errors.New("invalid provider config")

// decodeMap 将松散的 map 解码为强类型结构体，字符串与数字/布尔之间允许弱类型转换
func decodeMap(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// decodeConfig 解码 ProviderConfig.Config
func decodeConfig(providerType ProviderType, input map[string]any, out any) error {
	if err := decodeMap(input, out); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidConfig, providerType, err)
	}
	return nil
}

// decodeOptions 解码上传参数，失败属于调用方的编程错误
func decodeOptions(providerName string, opts Options, out any) error {
	if err := decodeMap(opts, out); err != nil {
		return fmt.Errorf("%s: invalid upload options: %w", providerName, err)
	}
	return nil
}

// requireKeys 校验必填配置，参数为 key/value 交替出现
func requireKeys(providerType ProviderType, pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for %s: missing required keys: %s", ErrInvalidConfig, providerType, strings.Join(missing, ", "))
	}
	return nil
}
