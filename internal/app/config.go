package app

import (
	"os"
	"path/filepath"
	"runtime"
)

// ServerConfig defines how the HTTP/WebSocket backend should run.
type ServerConfig struct {
	Addr   string
	Path   string
	DBPath string
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
	RoomKey   string
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("PLAYCHAT_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("PLAYCHAT_DATA_DIR"); env != "" {
		return filepath.Join(env, "playchat.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "playchat", "playchat.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Playchat", "playchat.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Playchat", "playchat.db")
		}
		return filepath.Join(home, ".local", "share", "playchat", "playchat.db")
	}
	return filepath.Join(".", ".playchat", "playchat.db")
}

// NormalizeSocketPath guarantees the websocket path starts with '/' and
// falls back to /socket when empty.
func NormalizeSocketPath(path string) string {
	if path == "" {
		return "/socket"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
