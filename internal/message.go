package internal

import (
	"encoding/json"
	"time"
)

// BotName is the fixed identity used for system notices such as welcome
// and leave announcements.
const BotName = "Playlist Bot"

// timestampLayout is a display-only wall-clock format; ordering never
// depends on it.
const timestampLayout = "3:04 pm"

// Message is one chat line or system notice delivered over the socket.
// SenderUserID is nil for system notices and marshals as JSON null.
type Message struct {
	SenderName   string  `json:"sender_name"`
	SenderUserID *string `json:"sender_user_id"`
	Text         string  `json:"text"`
	SentAt       string  `json:"sent_at"`
}

// FormatMessage builds a Message with the timestamp fixed at call time.
func FormatMessage(senderName string, senderUserID *string, text string) Message {
	return Message{
		SenderName:   senderName,
		SenderUserID: senderUserID,
		Text:         text,
		SentAt:       time.Now().Format(timestampLayout),
	}
}

// envelope is the json frame every socket event travels in, both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// inbound event names. Disconnects are transport-level and carry no frame.
const (
	eventJoinRoom    = "join_room"
	eventChatMessage = "chat_message"
)

// outbound event names.
const (
	eventMessage   = "message"
	eventRoomUsers = "roomUsers"
)

type joinPayload struct {
	UserID    string          `json:"user_id"`
	RoomID    string          `json:"room_id"`
	Name      string          `json:"name"`
	SongsList json.RawMessage `json:"songs_list"`
	SongCount int             `json:"song_count"`
}

type chatPayload struct {
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// rosterPayload carries the current occupants of a room. RoomID is only
// set on disconnect rosters, matching the historical wire shape.
type rosterPayload struct {
	RoomID string     `json:"room_id,omitempty"`
	Users  []RoomUser `json:"users"`
}

func encodeEvent(event string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	frame, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return nil
	}
	return frame
}

func encodeMessageEvent(msg Message) []byte {
	return encodeEvent(eventMessage, msg)
}

func encodeRosterEvent(roomID string, users []RoomUser) []byte {
	return encodeEvent(eventRoomUsers, rosterPayload{RoomID: roomID, Users: users})
}
