package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newSocketServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	server := NewServer(nil)
	ts := httptest.NewServer(http.HandlerFunc(server.ServeWS))
	t.Cleanup(ts.Close)
	return server, ts
}

func dialSocket(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	frame, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		t.Fatalf("marshal %s frame: %v", event, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame envelope
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode frame %s: %v", payload, err)
	}
	return frame
}

func readMessageEvent(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	frame := readFrame(t, conn)
	if frame.Event != eventMessage {
		t.Fatalf("expected %s event, got %s", eventMessage, frame.Event)
	}
	var msg Message
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func readRosterEvent(t *testing.T, conn *websocket.Conn) rosterPayload {
	t.Helper()
	frame := readFrame(t, conn)
	if frame.Event != eventRoomUsers {
		t.Fatalf("expected %s event, got %s", eventRoomUsers, frame.Event)
	}
	var roster rosterPayload
	if err := json.Unmarshal(frame.Data, &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	return roster
}

// expectSilence asserts that no frame arrives within the window. The
// connection is unusable for further reads afterwards, so call it last.
func expectSilence(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(window))
	if _, payload, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got %s", payload)
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, userID, roomID, name string) {
	t.Helper()
	sendEvent(t, conn, eventJoinRoom, joinPayload{UserID: userID, RoomID: roomID, Name: name})
}

func rosterNames(roster rosterPayload) []string {
	names := make([]string, 0, len(roster.Users))
	for _, user := range roster.Users {
		names = append(names, user.DisplayName)
	}
	return names
}

func TestJoinWelcomesOnlyTheJoiner(t *testing.T) {
	_, ts := newSocketServer(t)
	alice := dialSocket(t, ts)

	joinRoom(t, alice, "u1", "r1", "Alice")

	welcome := readMessageEvent(t, alice)
	if welcome.SenderName != BotName || welcome.SenderUserID != nil {
		t.Fatalf("welcome must be a system notice, got %+v", welcome)
	}
	if !strings.Contains(welcome.Text, "Alice") {
		t.Fatalf("welcome should address the joiner by name, got %q", welcome.Text)
	}

	roster := readRosterEvent(t, alice)
	if len(roster.Users) != 1 || roster.Users[0].DisplayName != "Alice" {
		t.Fatalf("joiner must appear in their own roster update, got %+v", roster.Users)
	}
	if roster.RoomID != "" {
		t.Fatalf("join roster should not carry room_id, got %q", roster.RoomID)
	}
}

func TestJoinNotifiesExistingOccupants(t *testing.T) {
	_, ts := newSocketServer(t)
	alice := dialSocket(t, ts)
	joinRoom(t, alice, "u1", "r1", "Alice")
	readMessageEvent(t, alice) // welcome
	readRosterEvent(t, alice)

	bob := dialSocket(t, ts)
	joinRoom(t, bob, "u2", "r1", "Bob")

	notice := readMessageEvent(t, alice)
	if !strings.Contains(notice.Text, "Bob joined") {
		t.Fatalf("expected join notice for Bob, got %q", notice.Text)
	}
	aliceRoster := readRosterEvent(t, alice)
	if got := rosterNames(aliceRoster); len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Fatalf("expected roster [Alice Bob], got %v", got)
	}

	// Bob sees the welcome and the same roster, but not his own join notice.
	welcome := readMessageEvent(t, bob)
	if !strings.Contains(welcome.Text, "Welcome") || !strings.Contains(welcome.Text, "Bob") {
		t.Fatalf("unexpected welcome for Bob: %q", welcome.Text)
	}
	bobRoster := readRosterEvent(t, bob)
	if got := rosterNames(bobRoster); len(got) != 2 {
		t.Fatalf("expected 2 occupants in Bob's roster, got %v", got)
	}
}

func TestChatBeforeJoinIsDropped(t *testing.T) {
	server, ts := newSocketServer(t)
	conn := dialSocket(t, ts)

	sendEvent(t, conn, eventChatMessage, chatPayload{UserID: "u1", RoomID: "r1", Name: "Ghost", Message: "boo"})

	time.Sleep(100 * time.Millisecond)
	if server.Registry().Count() != 0 {
		t.Fatal("chat must not create presence")
	}
	expectSilence(t, conn, 300*time.Millisecond)
}

func TestChatRoutedByRegisteredRoom(t *testing.T) {
	_, ts := newSocketServer(t)
	alice := dialSocket(t, ts)
	joinRoom(t, alice, "u1", "r1", "Alice")
	readMessageEvent(t, alice)
	readRosterEvent(t, alice)

	bob := dialSocket(t, ts)
	joinRoom(t, bob, "u2", "r2", "Bob")
	readMessageEvent(t, bob)
	readRosterEvent(t, bob)

	// Bob claims r1 in the payload, but his registered room is r2.
	sendEvent(t, bob, eventChatMessage, chatPayload{UserID: "u2", RoomID: "r1", Name: "Bob", Message: "sneaky"})

	msg := readMessageEvent(t, bob)
	if msg.SenderName != "Bob" || msg.Text != "sneaky" {
		t.Fatalf("Bob should see his own message in his registered room, got %+v", msg)
	}
	expectSilence(t, alice, 300*time.Millisecond)
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	_, ts := newSocketServer(t)
	conn := dialSocket(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	// join without a name is incomplete and must be silently dropped too.
	sendEvent(t, conn, eventJoinRoom, joinPayload{UserID: "u1", RoomID: "r1"})
	sendEvent(t, conn, "no_such_event", map[string]string{"x": "y"})

	// the connection must survive all of it and still accept a real join.
	joinRoom(t, conn, "u1", "r1", "Alice")
	welcome := readMessageEvent(t, conn)
	if !strings.Contains(welcome.Text, "Alice") {
		t.Fatalf("expected welcome after garbage frames, got %q", welcome.Text)
	}
}

func TestRejoinRelocatesWithoutLeaveBroadcast(t *testing.T) {
	server, ts := newSocketServer(t)
	alice := dialSocket(t, ts)
	joinRoom(t, alice, "u1", "r1", "Alice")
	readMessageEvent(t, alice)
	readRosterEvent(t, alice)

	observer := dialSocket(t, ts)
	joinRoom(t, observer, "u2", "r1", "Olga")
	readMessageEvent(t, observer)
	readRosterEvent(t, observer)
	readMessageEvent(t, alice) // Olga joined
	readRosterEvent(t, alice)

	joinRoom(t, alice, "u1", "r2", "Alice")
	welcome := readMessageEvent(t, alice)
	if !strings.Contains(welcome.Text, "Welcome") {
		t.Fatalf("expected fresh welcome on rejoin, got %q", welcome.Text)
	}
	roster := readRosterEvent(t, alice)
	if got := rosterNames(roster); len(got) != 1 || got[0] != "Alice" {
		t.Fatalf("expected Alice alone in r2, got %v", got)
	}

	waitForCondition(t, func() bool {
		users := server.Registry().ListByRoom("r1")
		return len(users) == 1 && users[0].DisplayName == "Olga"
	})
	// the old room gets no leave notice; its roster is stale by design.
	expectSilence(t, observer, 300*time.Millisecond)
}

func TestDisconnectBroadcastsLeaveAndRoster(t *testing.T) {
	server, ts := newSocketServer(t)
	alice := dialSocket(t, ts)
	joinRoom(t, alice, "u1", "r1", "Alice")
	readMessageEvent(t, alice)
	readRosterEvent(t, alice)

	bob := dialSocket(t, ts)
	joinRoom(t, bob, "u2", "r1", "Bob")
	readMessageEvent(t, alice) // Bob joined
	readRosterEvent(t, alice)
	readMessageEvent(t, bob)
	readRosterEvent(t, bob)

	// the full scenario: Bob chats, then drops.
	sendEvent(t, bob, eventChatMessage, chatPayload{UserID: "u2", RoomID: "r1", Name: "Bob", Message: "hi"})
	chat := readMessageEvent(t, alice)
	if chat.SenderName != "Bob" || chat.Text != "hi" {
		t.Fatalf("expected Bob's chat, got %+v", chat)
	}
	if chat.SenderUserID == nil || *chat.SenderUserID != "u2" {
		t.Fatalf("chat must carry the sender's user id, got %v", chat.SenderUserID)
	}
	readMessageEvent(t, bob) // Bob's own copy

	if err := bob.Close(); err != nil {
		t.Fatalf("close bob: %v", err)
	}

	left := readMessageEvent(t, alice)
	if !strings.Contains(left.Text, "Bob has left the room") {
		t.Fatalf("expected leave notice, got %q", left.Text)
	}
	roster := readRosterEvent(t, alice)
	if roster.RoomID != "r1" {
		t.Fatalf("disconnect roster must carry the room id, got %q", roster.RoomID)
	}
	if got := rosterNames(roster); len(got) != 1 || got[0] != "Alice" {
		t.Fatalf("expected roster [Alice] after Bob left, got %v", got)
	}

	waitForCondition(t, func() bool { return server.Registry().Count() == 1 })
}

func TestDisconnectWithoutJoinIsSilent(t *testing.T) {
	server, ts := newSocketServer(t)
	alice := dialSocket(t, ts)
	joinRoom(t, alice, "u1", "r1", "Alice")
	readMessageEvent(t, alice)
	readRosterEvent(t, alice)

	ghost := dialSocket(t, ts)
	time.Sleep(50 * time.Millisecond)
	if err := ghost.Close(); err != nil {
		t.Fatalf("close ghost: %v", err)
	}

	waitForCondition(t, func() bool { return server.Registry().Count() == 1 })
	expectSilence(t, alice, 300*time.Millisecond)
}

func TestRoomExistsProbe(t *testing.T) {
	server, ts := newSocketServer(t)
	probe := httptest.NewServer(http.HandlerFunc(server.HandleRoomExists))
	t.Cleanup(probe.Close)

	resp, err := http.Get(probe.URL + "?room=r1")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", resp.StatusCode)
	}

	alice := dialSocket(t, ts)
	joinRoom(t, alice, "u1", "r1", "Alice")
	readMessageEvent(t, alice)
	readRosterEvent(t, alice)

	resp, err = http.Get(probe.URL + "?room=r1")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for occupied room, got %d", resp.StatusCode)
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
