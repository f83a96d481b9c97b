package internal

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatMessageSystemNotice(t *testing.T) {
	msg := FormatMessage(BotName, nil, "Welcome to this PlayMyPlayList room, Alice.")
	if msg.SenderName != BotName {
		t.Fatalf("expected bot sender, got %q", msg.SenderName)
	}
	if msg.SenderUserID != nil {
		t.Fatal("system notices must carry a null sender user id")
	}
	if msg.SentAt == "" {
		t.Fatal("sent_at must be assigned at construction time")
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"sender_user_id":null`) {
		t.Fatalf("expected explicit null sender_user_id, got %s", raw)
	}
}

func TestFormatMessageUserChat(t *testing.T) {
	userID := "u42"
	msg := FormatMessage("Bob", &userID, "hi")
	if msg.SenderName != "Bob" || msg.Text != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.SenderUserID == nil || *msg.SenderUserID != "u42" {
		t.Fatalf("expected sender user id u42, got %v", msg.SenderUserID)
	}
}

func TestEncodeRosterEventOmitsEmptyRoom(t *testing.T) {
	frame := encodeRosterEvent("", []RoomUser{{UserID: "u1", DisplayName: "Alice"}})
	if strings.Contains(string(frame), "room_id") {
		t.Fatalf("join rosters must not carry room_id, got %s", frame)
	}

	frame = encodeRosterEvent("r1", nil)
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != eventRoomUsers {
		t.Fatalf("expected %s event, got %s", eventRoomUsers, env.Event)
	}
	var roster rosterPayload
	if err := json.Unmarshal(env.Data, &roster); err != nil {
		t.Fatalf("unmarshal roster: %v", err)
	}
	if roster.RoomID != "r1" {
		t.Fatalf("disconnect rosters carry room_id, got %+v", roster)
	}
}
