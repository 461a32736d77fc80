package storage

import "errors"

var (
	// ErrUnsupportedProvider 未注册的提供者类型
	ErrUnsupportedProvider = errors.New("unsupported provider type")

	// ErrProviderNotFound 注册表中没有该名称的提供者
	ErrProviderNotFound = errors.New("provider not found")

	// ErrInvalidMultiProvider 组合提供者参数不合法
	ErrInvalidMultiProvider = errors.New("invalid multi provider")

	errImageKitAuth  = errors.New("Failed to authenticate with ImageKit")
	errBackblazeAuth = errors.New("Failed to authorize with Backblaze")
)
