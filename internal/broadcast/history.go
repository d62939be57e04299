package broadcast

import (
	"context"
	"time"

	"supportbot/internal/storage"
	"supportbot/pkg/logx"
)

// maxStoredText bounds the message excerpt persisted with a history record
// (store column limit).
const maxStoredText = 4000

// HistoryStore is the slice of the persistent store the recorder needs.
// *storage* implementations satisfy it; tests plug in stubs.
type HistoryStore interface {
	InsertHistory(ctx context.Context, rec storage.HistoryRecord) (int64, error)
	GetHistory(ctx context.Context, id int64) (storage.HistoryRecord, error)
	ListHistory(ctx context.Context, limit, offset int, since time.Time) ([]storage.HistoryRecord, error)
	DeleteHistory(ctx context.Context, id int64) (int64, error)
	PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder persists and serves broadcast history.
type Recorder struct {
	st  HistoryStore
	log logx.Logger
}

func NewRecorder(st HistoryStore, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{st: st, log: log}
}

// Record persists one summary row for a terminal batch, truncating the
// message text to the store limit. Invoked exactly once per batch.
func (r *Recorder) Record(ctx context.Context, rec storage.HistoryRecord) (int64, error) {
	rec.MessageText = truncateRunes(rec.MessageText, maxStoredText)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return r.st.InsertHistory(ctx, rec)
}

func (r *Recorder) List(ctx context.Context, limit, offset int, since time.Time) ([]storage.HistoryRecord, error) {
	return r.st.ListHistory(ctx, limit, offset, since)
}

func (r *Recorder) Detail(ctx context.Context, id int64) (storage.HistoryRecord, error) {
	return r.st.GetHistory(ctx, id)
}

func (r *Recorder) Delete(ctx context.Context, id int64) (int64, error) {
	return r.st.DeleteHistory(ctx, id)
}

// PurgeOlderThan removes records older than the given age. Used by the
// maintenance schedule and the panel's manual cleanup.
func (r *Recorder) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	n, err := r.st.PurgeHistoryBefore(ctx, time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("broadcast history purged", logx.Int64("rows", n), logx.Duration("age", age))
	}
	return n, nil
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
