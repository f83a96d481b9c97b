package internal

import (
	"encoding/json"
	"sort"
	"sync"
)

// PresenceRecord describes one live connection sitting in one room. The
// songs fields are opaque game payload carried through join events; the
// registry never inspects them.
type PresenceRecord struct {
	ConnID    string
	UserID    string
	RoomID    string
	Name      string
	SongsList json.RawMessage
	SongCount int

	seq uint64
}

// RoomUser is the roster projection sent to clients.
type RoomUser struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Registry is the single source of truth for who is connected to which
// room. Records are keyed by connection ID; at most one record exists per
// connection at any time.
type Registry struct {
	mu      sync.RWMutex
	records map[string]PresenceRecord
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]PresenceRecord)}
}

// Add inserts or replaces the record for its connection ID and returns the
// stored copy. It never fails; joining again simply overwrites.
func (reg *Registry) Add(record PresenceRecord) PresenceRecord {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.nextSeq++
	record.seq = reg.nextSeq
	reg.records[record.ConnID] = record
	return record
}

// Remove deletes the record for the connection if present. The second
// return value is false when there was nothing to remove, in which case
// callers are expected to skip any broadcast.
func (reg *Registry) Remove(connID string) (PresenceRecord, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	record, ok := reg.records[connID]
	if ok {
		delete(reg.records, connID)
	}
	return record, ok
}

// Get looks up the record for a connection. The registry, not the event
// payload, is the authority on which room a connection occupies.
func (reg *Registry) Get(connID string) (PresenceRecord, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	record, ok := reg.records[connID]
	return record, ok
}

// ListByRoom returns the roster projection for a room in join order.
func (reg *Registry) ListByRoom(roomID string) []RoomUser {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	matched := make([]PresenceRecord, 0, 8)
	for _, record := range reg.records {
		if record.RoomID == roomID {
			matched = append(matched, record)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	users := make([]RoomUser, 0, len(matched))
	for _, record := range matched {
		users = append(users, RoomUser{UserID: record.UserID, DisplayName: record.Name})
	}
	return users
}

// Count reports how many connections currently hold a record.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.records)
}

// CountRooms reports how many distinct rooms are occupied right now.
// Rooms have no stored object; they exist exactly while referenced.
func (reg *Registry) CountRooms() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rooms := make(map[string]struct{}, len(reg.records))
	for _, record := range reg.records {
		rooms[record.RoomID] = struct{}{}
	}
	return len(rooms)
}
