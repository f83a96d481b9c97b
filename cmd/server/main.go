package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"playchat/internal/app"
)

func main() {
	addr := flag.String("addr", envOrDefault("PLAYCHAT_ADDR", ":8080"), "server listen address")
	path := flag.String("path", envOrDefault("PLAYCHAT_PATH", "/socket"), "websocket path")
	db := flag.String("db", envOrDefault("PLAYCHAT_DB_PATH", ""), "sqlite database path")
	flag.Parse()

	cfg := app.ServerConfig{
		Addr:   *addr,
		Path:   app.NormalizeSocketPath(*path),
		DBPath: *db,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = app.DefaultDBPath()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "playchat-server: %v\n", err)
		os.Exit(1)
	}
	log.Printf("playchat server listening on %s (ws path %s, db %s)", handle.Addr(), cfg.Path, cfg.DBPath)
	if err := handle.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "playchat-server: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
