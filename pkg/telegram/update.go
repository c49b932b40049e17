package telegram

import "strings"

// Update mirrors the Bot API update object with only the fields the
// framework handles: plain messages and inline keyboard callbacks.
type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

func (u *Update) HasMessage() bool  { return u.Message != nil }
func (u *Update) HasCallback() bool { return u.CallbackQuery != nil }

// Message is an incoming chat message. IsCommand, Command and Arguments
// are derived by ParseCommand, not part of the wire format.
type Message struct {
	MessageID int      `json:"message_id"`
	From      *User    `json:"from,omitempty"`
	Chat      *Chat    `json:"chat"`
	Text      string   `json:"text,omitempty"`
	IsCommand bool     `json:"-"`
	Command   string   `json:"-"`
	Arguments string   `json:"-"`
	ReplyTo   *Message `json:"reply_to_message,omitempty"`
}

// CallbackQuery is an inline keyboard button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// Chat.Type is private, group, supergroup or channel.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// ParseCommand populates the derived command fields from Text. Handles
// the /command@botname form used in group chats.
func (m *Message) ParseCommand() {
	if m == nil || m.Text == "" || m.Text[0] != '/' {
		return
	}

	fields := strings.Fields(m.Text[1:])
	if len(fields) == 0 {
		m.IsCommand = true
		return
	}

	name := fields[0]
	if at := strings.IndexByte(name, '@'); at != -1 {
		name = name[:at]
	}

	m.IsCommand = true
	m.Command = name
	m.Arguments = strings.Join(fields[1:], " ")
}
