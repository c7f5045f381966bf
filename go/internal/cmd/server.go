package main

import (
	"net/http"

	"github.com/mcdev12/blitz/go/internal/config"
)

func setupServer(cfg config.ServerConfig, services *Services) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           services.Gateway.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
