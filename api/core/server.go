package core

import (
	"net/http"
)

// NewServer 创建 http.Server
func NewServer(deps *RouterDependencies) (*http.Server, func()) {
	router, clean := NewRouter(deps)
	cfg := deps.Config // NewRouter 已填充默认配置

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
