package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"playchat/internal/storage"
)

const persistTimeout = 5 * time.Second

// Server binds the presence registry and the message formatter to the
// connection lifecycle events arriving over the hub. All three handlers
// run under one mutex so each event's registry read-after-write and its
// broadcast sequence stay ordered relative to other connections.
type Server struct {
	mu          sync.Mutex
	hub         *Hub
	registry    *Registry
	store       *storage.Store
	metrics     *Metrics
	connLimiter *RateLimiter
}

// NewServer wires the coordinator. The store may be nil, in which case
// the fire-and-forget persistence calls are skipped.
func NewServer(store *storage.Store) *Server {
	return &Server{
		hub:         NewHub(),
		registry:    NewRegistry(),
		store:       store,
		metrics:     NewMetrics(),
		connLimiter: NewRateLimiter(30, time.Minute),
	}
}

// Hub exposes the broadcast groups for the HTTP probes.
func (s *Server) Hub() *Hub { return s.hub }

// Registry exposes presence state for probes and tests.
func (s *Server) Registry() *Registry { return s.registry }

// HandleJoin registers the connection's presence, subscribes it to the
// room's broadcast group, and emits welcome, join notice, and roster in
// that order. The roster reflects the registry state after the add, so
// the joining user sees themselves in it.
func (s *Server) HandleJoin(client *Client, data json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" || payload.Name == "" {
		// incomplete join events are dropped without an answer.
		return
	}

	s.mu.Lock()
	record := s.registry.Add(PresenceRecord{
		ConnID:    client.id,
		UserID:    payload.UserID,
		RoomID:    payload.RoomID,
		Name:      payload.Name,
		SongsList: payload.SongsList,
		SongCount: payload.SongCount,
	})

	if prev := client.room; prev != nil && prev.key != record.RoomID {
		// Rejoining a different room relocates the connection silently:
		// the old room gets no leave notice and its roster stays stale
		// until the next event touches it. Known wart, kept for protocol
		// compatibility; we log it so operators can see it happening.
		prev.leave(client)
		log.Printf("conn %s relocated from room %q to %q without leave broadcast", client.id, prev.key, record.RoomID)
		s.hub.deleteRoomIfEmpty(prev.key)
	}

	room := s.hub.getOrCreateRoom(record.RoomID)
	room.join(client)
	client.room = room

	welcome := FormatMessage(BotName, nil, fmt.Sprintf("Welcome to this PlayMyPlayList room, %s.", record.Name))
	client.enqueue(encodeMessageEvent(welcome))

	notice := FormatMessage(BotName, nil, fmt.Sprintf("%s joined the PlayMyPlayList room.", record.Name))
	room.broadcastExcept(client, encodeMessageEvent(notice))

	room.broadcast(encodeRosterEvent("", s.registry.ListByRoom(record.RoomID)))
	s.mu.Unlock()

	s.metrics.IncJoin()
	s.persistPlayerAsync(record)
}

// HandleChat relays a chat message to the sender's registered room. The
// room claimed in the payload is ignored; a connection that never joined
// produces no broadcast at all.
func (s *Server) HandleChat(client *Client, data json.RawMessage) {
	var payload chatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	if !client.allowMessage(time.Now()) {
		client.notifyRateLimit()
		return
	}

	s.mu.Lock()
	record, ok := s.registry.Get(client.id)
	if !ok {
		s.mu.Unlock()
		return
	}
	if room := s.hub.getRoom(record.RoomID); room != nil {
		userID := payload.UserID
		room.broadcast(encodeMessageEvent(FormatMessage(payload.Name, &userID, payload.Message)))
		s.metrics.IncChat()
	}
	s.mu.Unlock()
}

// HandleDisconnect removes the connection's presence and, if it had one,
// announces the departure and broadcasts a fresh roster to whoever is
// left. The durable player record is removed fire-and-forget; its outcome
// never delays or gates the broadcast.
func (s *Server) HandleDisconnect(client *Client) {
	s.mu.Lock()
	record, ok := s.registry.Remove(client.id)
	room := client.room
	if room != nil {
		room.leave(client)
		client.room = nil
	}
	if ok && room != nil {
		left := FormatMessage(BotName, nil, fmt.Sprintf("%s has left the room.", record.Name))
		room.broadcast(encodeMessageEvent(left))
		room.broadcast(encodeRosterEvent(record.RoomID, s.registry.ListByRoom(record.RoomID)))
	}
	s.mu.Unlock()

	client.closeSend()
	if room != nil {
		s.hub.deleteRoomIfEmpty(room.key)
	}
	if ok {
		s.removePlayerAsync(record.UserID)
	}
	s.metrics.DecConn()
}

// persistPlayerAsync stores the join payload as the durable player record
// without blocking the event handler.
func (s *Server) persistPlayerAsync(record PresenceRecord) {
	if s.store == nil || record.UserID == "" {
		return
	}
	player := storage.Player{
		UserID:    record.UserID,
		RoomID:    record.RoomID,
		Name:      record.Name,
		Songs:     record.SongsList,
		SongCount: record.SongCount,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.UpsertPlayer(ctx, player); err != nil {
			log.Printf("persist player %s: %v", player.UserID, err)
		}
	}()
}

// removePlayerAsync dispatches the best-effort removal of the durable
// player record. Failures are logged and swallowed.
func (s *Server) removePlayerAsync(userID string) {
	if s.store == nil || userID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.RemovePlayer(ctx, userID); err != nil {
			log.Printf("remove player %s: %v", userID, err)
		}
	}()
}
