package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"bookrate/internal/crawl"
	"bookrate/internal/server"
)

var listenAndServe = func(ctx context.Context, addr string) error {
	return server.New(crawl.New()).ListenAndServe(ctx, addr)
}

// ServeCmd represents the HTTP server command
type ServeCmd struct {
	Addr string `short:"a" help:"Listen address (host:port)"`
}

func (s *ServeCmd) Run() error {
	addr := s.Addr
	if addr == "" {
		addr = viper.GetString("server.addr")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting HTTP server", "addr", addr)
	return listenAndServe(ctx, addr)
}
