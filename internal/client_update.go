package internal

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// Update reacts to key presses and asynchronous socket events to drive
// the application state.
func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		// global quit
		if typedMessage.Type == tea.KeyCtrlC || typedMessage.Type == tea.KeyEsc {
			if model.websocketConn != nil {
				_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = model.websocketConn.Close()
			}
			return model, tea.Quit
		}
		if typedMessage.Type == tea.KeyEnter {
			return model.handleEnter()
		}

	case connectedMsg:
		model.isConnected = true
		model.connectionError = nil
		if err := model.sendJoin(); err != nil {
			model.connectionError = err
			return model, model.scheduleReconnect()
		}
		return model, model.readOnceCmd()

	case connectFailedMsg:
		model.isConnected = false
		model.connectionError = typedMessage.err
		return model, model.scheduleReconnect()

	case reconnectMsg:
		if !model.isConnected && model.mode == modeChat {
			return model, model.connectCmd()
		}
		return model, nil

	case incomingMsg:
		entry := chatEntry{
			sender: typedMessage.SenderName,
			text:   typedMessage.Text,
			sentAt: typedMessage.SentAt,
			system: typedMessage.SenderUserID == nil,
		}
		model.entries = append(model.entries, entry)
		return model, model.readOnceCmd()

	case rosterMsg:
		model.roster = typedMessage
		return model, model.readOnceCmd()

	case unknownEventMsg:
		return model, model.readOnceCmd()

	case existsMsg:
		if typedMessage.err == nil && !typedMessage.exists {
			model.appendSystem("Room \"" + typedMessage.key + "\" is new; you are creating it.")
		}
		return model, nil

	case errorMsg:
		model.isConnected = false
		model.connectionError = typedMessage
		model.websocketConn = nil
		model.appendSystem("Connection lost. Reconnecting…")
		return model, model.scheduleReconnect()
	}

	var inputCmd tea.Cmd
	model.textInput, inputCmd = model.textInput.Update(message)
	return model, inputCmd
}

func (model *TUIModel) handleEnter() (tea.Model, tea.Cmd) {
	trimmed := strings.TrimSpace(model.textInput.Value())
	switch model.mode {
	case modeNamePrompt:
		if trimmed == "" {
			model.appendSystem("Display name cannot be empty.")
			return model, nil
		}
		model.username = trimmed
		model.textInput.SetValue("")
		model.mode = modeRoomPrompt
		model.textInput.Placeholder = "Enter room key…"
		model.textInput.Prompt = "room> "
		return model, nil

	case modeRoomPrompt:
		if trimmed == "" {
			model.appendSystem("Room key cannot be empty.")
			return model, nil
		}
		model.roomKey = trimmed
		model.textInput.SetValue("")
		model.mode = modeChat
		model.textInput.Placeholder = "Type a message…"
		model.textInput.Prompt = "> "
		return model, tea.Batch(model.existsCmd(trimmed), model.connectCmd())

	default: // modeChat
		if trimmed == "" {
			return model, nil
		}
		model.textInput.SetValue("")
		if err := model.sendChat(trimmed); err != nil {
			model.connectionError = err
			model.appendSystem("Could not send message; waiting for reconnect.")
		}
		return model, nil
	}
}

func (model *TUIModel) appendSystem(text string) {
	model.entries = append(model.entries, chatEntry{
		sender: BotName,
		text:   text,
		sentAt: time.Now().Format(timestampLayout),
		system: true,
	})
}
