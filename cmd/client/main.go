package main

import (
	"flag"
	"fmt"
	"os"

	"playchat/internal/app"
)

func main() {
	serverURL := flag.String("server-url", envOrDefault("PLAYCHAT_SERVER", "ws://127.0.0.1:8080/socket"), "server websocket URL")
	username := flag.String("user", envOrDefault("PLAYCHAT_USER", ""), "display name for the room")
	flag.Parse()

	roomKey := ""
	if remaining := flag.Args(); len(remaining) > 0 {
		roomKey = remaining[0]
	}

	cfg := app.ClientConfig{
		ServerURL: *serverURL,
		Username:  *username,
		RoomKey:   roomKey,
	}
	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "playchat: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
