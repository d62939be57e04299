package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("storage: not found")

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// User is one addressable end user of the bot.
type User struct {
	TgID      int64
	Username  string
	Banned    bool
	CreatedAt time.Time
}

// HistoryRecord is the durable summary of one finished (or stopped) broadcast.
// Append-only: never mutated after creation except by delete/purge.
type HistoryRecord struct {
	ID          int64
	CreatedAt   time.Time
	AdminID     int64
	Type        string // broadcast flavor, e.g. "pro"
	MediaType   string // "text", "photo", "video", ...
	SentCount   int
	TotalUsers  int
	MessageText string
}

type Store interface {
	Close() error

	// Users.
	UpsertUser(ctx context.Context, tgID int64, username string) error
	SetBanned(ctx context.Context, tgID int64, banned bool) error
	CountUsers(ctx context.Context) (int, error)
	// ActiveRecipients returns the ordered list of recipients eligible for a
	// broadcast at this moment (non-banned users).
	ActiveRecipients(ctx context.Context) ([]int64, error)

	// Settings key/value. SetSetting is an idempotent upsert (last writer wins).
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	// Broadcast history.
	InsertHistory(ctx context.Context, rec HistoryRecord) (int64, error)
	GetHistory(ctx context.Context, id int64) (HistoryRecord, error)
	// ListHistory returns records newest-first. A zero since means no lower
	// bound; limit 0 picks a default page size, limit < 0 means unbounded.
	ListHistory(ctx context.Context, limit, offset int, since time.Time) ([]HistoryRecord, error)
	DeleteHistory(ctx context.Context, id int64) (int64, error)
	PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
