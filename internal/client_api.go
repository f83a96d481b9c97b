package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// websocket dial
func (model *TUIModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(model.serverSocketURL, http.Header{})
		if err != nil {
			return connectFailedMsg{err: err}
		}
		model.websocketConn = conn
		return connectedMsg{}
	}
}

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	const retryDelay = 2 * time.Second
	// schedule a future poke that nudges Update to try the connection again.
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

// HTTP GET against /exists so the user knows whether they are creating a
// fresh room or joining a live one.
func (model *TUIModel) existsCmd(key string) tea.Cmd {
	return func() tea.Msg {
		urlStr, err := buildExistsURL(model.serverSocketURL, key)
		if err != nil {
			return existsMsg{key: key, exists: false, err: err}
		}
		client := &http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get(urlStr)
		if err != nil {
			return existsMsg{key: key, exists: false, err: err}
		}
		_ = resp.Body.Close()
		return existsMsg{key: key, exists: resp.StatusCode == http.StatusOK, err: nil}
	}
}

// readOnceCmd pulls the next frame off the socket and turns it into a
// bubbletea message. Update re-arms it after every delivery.
func (model *TUIModel) readOnceCmd() tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return errorMsg(fmt.Errorf("websocket not connected"))
		}
		messageType, payload, err := model.websocketConn.ReadMessage()
		if err != nil {
			return errorMsg(err)
		}
		if messageType != websocket.TextMessage {
			return unknownEventMsg{}
		}
		var frame envelope
		if err := json.Unmarshal(payload, &frame); err != nil {
			return unknownEventMsg{}
		}
		switch frame.Event {
		case eventMessage:
			var msg Message
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				return unknownEventMsg{}
			}
			return incomingMsg(msg)
		case eventRoomUsers:
			var roster rosterPayload
			if err := json.Unmarshal(frame.Data, &roster); err != nil {
				return unknownEventMsg{}
			}
			return rosterMsg(roster.Users)
		}
		return unknownEventMsg{}
	}
}

func (model *TUIModel) sendJoin() error {
	frame := encodeEvent(eventJoinRoom, joinPayload{
		UserID: model.userID,
		RoomID: model.roomKey,
		Name:   model.username,
	})
	return model.writeFrame(frame)
}

func (model *TUIModel) sendChat(text string) error {
	frame := encodeEvent(eventChatMessage, chatPayload{
		UserID:  model.userID,
		RoomID:  model.roomKey,
		Name:    model.username,
		Message: text,
	})
	return model.writeFrame(frame)
}

func (model *TUIModel) writeFrame(frame []byte) error {
	if model.websocketConn == nil {
		return fmt.Errorf("websocket not connected")
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	return model.websocketConn.WriteMessage(websocket.TextMessage, frame)
}

func buildExistsURL(socketURL, key string) (string, error) {
	base, err := httpBaseFromSocketURL(socketURL)
	if err != nil {
		return "", err
	}
	return base + "/exists?room=" + url.QueryEscape(key), nil
}

func httpBaseFromSocketURL(socketURL string) (string, error) {
	parsed, err := url.Parse(socketURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %s", parsed.Scheme)
	}
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}
