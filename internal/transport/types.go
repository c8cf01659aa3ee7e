// Package transport defines the chat-platform neutral types the bot speaks.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// Update carries exactly one of Message or Callback, selected by Kind.
type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// ChatTarget addresses a chat, or a forum topic inside it when ThreadID is set.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// MessageRef points at a sent message so it can be edited in place.
type MessageRef struct {
	ChatTarget
	MessageID int
}

// Message is an incoming text message.
type Message struct {
	Chat   ChatTarget
	ID     int
	FromID int64
	Text   string
}

// Callback is an inline button press on a message the bot sent.
type Callback struct {
	Chat      ChatTarget
	ID        string
	FromID    int64
	MessageID int
	Data      string
}

// Ref returns the message the pressed button belongs to.
func (c *Callback) Ref() MessageRef {
	return MessageRef{ChatTarget: c.Chat, MessageID: c.MessageID}
}

// Button reports Data back as a Callback when pressed.
type Button struct {
	Text string
	Data string
}

type SendOptions struct {
	ParseMode      string // "HTML" or ""
	DisablePreview bool
	Keyboard       [][]Button // attached to the first chunk of a split text only
}

// Adapter is what the bot needs from a chat platform.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// BotCommand is one entry of the platform's command menu.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is implemented by adapters whose platform shows a command menu.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
