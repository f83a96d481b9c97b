package internal

import "sync"

// Hub tracks the live broadcast groups by room key. Groups are created on
// first join and dropped once the last occupant leaves.
type Hub struct {
	mutex sync.RWMutex
	rooms map[string]*Room
}

// NewHub builds an empty hub ready to serve socket connections.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// Exists takes a peek into the room map. Used by the lightweight /exists probe.
func (hub *Hub) Exists(key string) bool {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	_, ok := hub.rooms[key]
	return ok
}

// getOrCreateRoom ensures there is a live Room for the given key.
func (hub *Hub) getOrCreateRoom(key string) *Room {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if room, exists := hub.rooms[key]; exists {
		return room
	}
	room := newRoom(key)
	hub.rooms[key] = room
	return room
}

// getRoom retrieves a room by key (may return nil).
func (hub *Hub) getRoom(key string) *Room {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return hub.rooms[key]
}

func (hub *Hub) deleteRoomIfEmpty(key string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if room, exists := hub.rooms[key]; exists {
		if room.size() == 0 {
			delete(hub.rooms, key)
		}
	}
}
