package internal

import (
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// chatEntry is one rendered line in the message log.
type chatEntry struct {
	sender string
	text   string
	sentAt string
	system bool
}

// TUIModel holds the bubbletea state for the chat client: prompts, the
// message log, the live roster, and the websocket connection.
type TUIModel struct {
	textInput       textinput.Model
	entries         []chatEntry
	roster          []RoomUser
	serverSocketURL string
	roomKey         string
	username        string
	userID          string
	websocketConn   *websocket.Conn
	writeMutex      sync.Mutex
	isConnected     bool
	connectionError error
	mode            appMode
}

// bubbletea messages for the asynchronous events driving the client.
type (
	connectedMsg     struct{}
	connectFailedMsg struct{ err error }
	incomingMsg      Message
	rosterMsg        []RoomUser
	unknownEventMsg  struct{}
	errorMsg         error
	reconnectMsg     struct{}
	existsMsg        struct {
		key    string
		exists bool
		err    error
	}
)

type appMode int

const (
	modeNamePrompt appMode = iota
	modeRoomPrompt
	modeChat
)

func NewTUIModel(serverSocketURL, roomKey, username string) *TUIModel {
	input := textinput.New()
	input.CharLimit = 0
	input.Focus()

	model := &TUIModel{
		textInput:       input,
		entries:         make([]chatEntry, 0, 64),
		serverSocketURL: serverSocketURL,
		roomKey:         roomKey,
		username:        username,
		userID:          uuid.NewString(),
	}
	switch {
	case username == "":
		model.mode = modeNamePrompt
		model.textInput.Placeholder = "Enter display name…"
		model.textInput.Prompt = "name> "
		model.textInput.SetValue(defaultUsername())
	case roomKey == "":
		model.mode = modeRoomPrompt
		model.textInput.Placeholder = "Enter room key…"
		model.textInput.Prompt = "room> "
	default:
		model.mode = modeChat
		model.textInput.Placeholder = "Type a message…"
		model.textInput.Prompt = "> "
	}
	return model
}

func defaultUsername() string {
	if user := os.Getenv("PLAYCHAT_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "anon"
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeChat {
		return model.connectCmd()
	}
	return nil
}
