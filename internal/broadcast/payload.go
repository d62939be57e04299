package broadcast

// PayloadKind discriminates what a broadcast actually sends.
type PayloadKind int

const (
	// KindText sends payload text as a plain message.
	KindText PayloadKind = iota
	// KindMediaRef re-sends (copies) an existing message, media included,
	// without the engine ever seeing its content.
	KindMediaRef
)

// MediaRef points at the operator's original message to be copied per
// recipient.
type MediaRef struct {
	FromChatID int64
	MessageID  int
	MediaType  string // platform content kind ("photo", "video", ...)
	Caption    string
}

// Payload is the single message of a batch. Immutable once the batch starts.
type Payload struct {
	Kind  PayloadKind
	Text  string
	Media MediaRef // valid when Kind == KindMediaRef
}

func TextPayload(text string) Payload {
	return Payload{Kind: KindText, Text: text}
}

func MediaPayload(fromChatID int64, messageID int, mediaType, caption string) Payload {
	return Payload{
		Kind:  KindMediaRef,
		Media: MediaRef{FromChatID: fromChatID, MessageID: messageID, MediaType: mediaType, Caption: caption},
	}
}

// Excerpt returns the human-readable text of the payload (text or caption),
// used for history storage and previews.
func (p Payload) Excerpt() string {
	if p.Kind == KindMediaRef {
		return p.Media.Caption
	}
	return p.Text
}

// ContentKind returns the stored media_type value ("text" for plain text).
func (p Payload) ContentKind() string {
	if p.Kind == KindMediaRef {
		if p.Media.MediaType != "" {
			return p.Media.MediaType
		}
		return "media"
	}
	return "text"
}
