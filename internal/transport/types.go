package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool

	// MediaType is the platform content kind ("photo", "video", "document", ...)
	// when the message carries something other than plain text. Empty for text.
	MediaType string
	Caption   string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Document is an opaque file payload pushed to a chat (CSV exports etc).
type Document struct {
	Name    string
	Caption string
	Data    []byte
}

// Adapter is the message-transport collaborator. Each send is a single
// attempt; retry policy, if any, belongs to the caller.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// Copy re-sends an existing message (media included) to another chat
	// without exposing its content to the caller.
	Copy(ctx context.Context, to ChatTarget, src MessageRef) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	SendDocument(ctx context.Context, to ChatTarget, doc Document) (MessageRef, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
