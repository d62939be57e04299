package transport

import "errors"

// ErrRecipientUnreachable marks a permanent per-recipient delivery failure:
// the recipient blocked the bot, deleted their account, or the chat no longer
// exists. Callers should stop targeting the recipient; everything else is
// treated as transient.
var ErrRecipientUnreachable = errors.New("recipient permanently unreachable")

// IsPermanent reports whether err is a permanent delivery failure.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRecipientUnreachable)
}
