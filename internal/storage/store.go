package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle holding the durable player records the
// room/game domain leaves behind.
type Store struct {
	db *sql.DB
}

// Player is a row in the players table: the playlist payload a user
// brought into a room. Songs is stored verbatim and never interpreted.
type Player struct {
	UserID    string
	RoomID    string
	Name      string
	Songs     json.RawMessage
	SongCount int
	CreatedAt time.Time
}

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "playchat.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS players (
		user_id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		name TEXT NOT NULL,
		songs TEXT,
		song_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// UpsertPlayer inserts the player record or replaces the existing one for
// the same user identity.
func (s *Store) UpsertPlayer(ctx context.Context, player Player) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players(user_id, room_id, name, songs, song_count) VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			room_id = excluded.room_id,
			name = excluded.name,
			songs = excluded.songs,
			song_count = excluded.song_count
	`, player.UserID, player.RoomID, player.Name, songsText(player.Songs), player.SongCount)
	return err
}

// GetPlayer fetches a player record, or nil if none exists.
func (s *Store) GetPlayer(ctx context.Context, userID string) (*Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, room_id, name, songs, song_count, created_at FROM players WHERE user_id = ?`, userID)
	player, err := scanPlayer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return player, nil
}

// ListRoomPlayers returns the player records for a room in join order.
func (s *Store) ListRoomPlayers(ctx context.Context, roomID string) ([]Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, room_id, name, songs, song_count, created_at
		FROM players
		WHERE room_id = ?
		ORDER BY created_at ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		player, err := scanPlayer(rows.Scan)
		if err != nil {
			return nil, err
		}
		players = append(players, *player)
	}
	return players, rows.Err()
}

// RemovePlayer deletes the durable record for a user identity. Removing
// an absent record is not an error.
func (s *Store) RemovePlayer(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM players WHERE user_id = ?`, userID)
	return err
}

func scanPlayer(scan func(...any) error) (*Player, error) {
	var player Player
	var songs sql.NullString
	if err := scan(&player.UserID, &player.RoomID, &player.Name, &songs, &player.SongCount, &player.CreatedAt); err != nil {
		return nil, err
	}
	if songs.Valid {
		player.Songs = json.RawMessage(songs.String)
	}
	return &player, nil
}

func songsText(songs json.RawMessage) any {
	if len(songs) == 0 {
		return nil
	}
	return string(songs)
}
