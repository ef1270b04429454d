package telegram

import (
	"strconv"
	"strings"
)

// Update is the subset of a webhook update the bot reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Chat is the conversation a message arrived in.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// ChatID returns the chat id in the string form used by alert recipients.
func (c Chat) ChatID() string {
	return strconv.FormatInt(c.ID, 10)
}

// Command splits "/name@BotName args..." into the bare command name and the
// remaining text. ok is false if the message is not a command.
func (m Message) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest), head != ""
}
