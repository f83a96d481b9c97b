package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	rosterStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
	userColorPalette   = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

func (model *TUIModel) View() string {
	switch model.mode {
	case modeNamePrompt:
		return model.renderPrompt("PlayMyPlayList", "Pick the display name other players will see.")
	case modeRoomPrompt:
		return model.renderPrompt("Join a room", "Enter a room key and press Enter.")
	default:
		return model.renderChatView()
	}
}

func (model *TUIModel) renderPrompt(title, hint string) string {
	header := appTitleStyle.Render(title)
	hintText := hintStyle.Render(hint)
	sections := []string{header, hintText}
	if notices := model.renderSystemNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *TUIModel) renderChatView() string {
	headerSegments := []string{"PlayMyPlayList " + Version}
	if model.roomKey != "" {
		headerSegments = append(headerSegments, fmt.Sprintf("Room %s", model.roomKey))
	}
	headerSegments = append(headerSegments, fmt.Sprintf("Player %s", model.username))
	header := chatHeaderStyle.Render(strings.Join(headerSegments, dividerStyle))

	var statusLine string
	switch {
	case model.connectionError != nil:
		statusLine = errorStyle.Render("Connection error: " + model.connectionError.Error())
	case model.isConnected:
		statusLine = connectedStyle.Render("Connected")
	default:
		statusLine = connectingStyle.Render("Connecting…")
	}

	var messageLines []string
	for _, entry := range model.entries {
		messageLines = append(messageLines, model.renderChatEntry(entry))
	}
	if len(messageLines) == 0 {
		messageLines = append(messageLines, systemMessageStyle.Render("No messages yet. Say hi and start the conversation."))
	}

	sections := []string{header, statusLine}
	sections = append(sections, messageBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, messageLines...)))
	if roster := model.renderRoster(); roster != "" {
		sections = append(sections, roster)
	}
	sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
	sections = append(sections, hintStyle.Render("Esc to quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderChatEntry renders a single log line. It stamps the timestamp,
// picks a color for the sender, and indents multi-line messages.
func (model *TUIModel) renderChatEntry(entry chatEntry) string {
	timestamp := timestampStyle.Render(fmt.Sprintf("[%s]", entry.sentAt))
	if entry.system {
		body := systemMessageStyle.Render(entry.text)
		return lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", body)
	}

	var nameStyle lipgloss.Style
	if entry.sender == model.username {
		nameStyle = activeUserStyle
	} else {
		nameStyle = usernameStyle.Copy().Foreground(colorForUser(entry.sender))
	}

	name := nameStyle.Render(entry.sender)
	bodyText := messageBodyStyle.Render(strings.ReplaceAll(entry.text, "\n", "\n   "))

	return lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", name, ": ", bodyText)
}

func (model *TUIModel) renderRoster() string {
	if len(model.roster) == 0 {
		return ""
	}
	names := make([]string, 0, len(model.roster))
	for _, user := range model.roster {
		names = append(names, user.DisplayName)
	}
	return rosterStyle.Render(fmt.Sprintf("In room (%d): %s", len(names), strings.Join(names, ", ")))
}

func (model *TUIModel) renderSystemNotices() string {
	var notices []string
	for _, entry := range model.entries {
		if entry.system {
			notices = append(notices, systemMessageStyle.Render(entry.text))
		}
	}
	if len(notices) == 0 {
		return ""
	}
	return statusStyle.Render(lipgloss.JoinVertical(lipgloss.Left, notices...))
}

// color for users
func colorForUser(name string) lipgloss.Color {
	if name == "" {
		return userColorPalette[0]
	}
	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
