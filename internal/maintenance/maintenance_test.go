package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"supportbot/internal/broadcast"
	"supportbot/internal/storage"
	"supportbot/pkg/logx"
)

type purgeStore struct {
	mu     sync.Mutex
	purged []time.Time
}

func (p *purgeStore) InsertHistory(context.Context, storage.HistoryRecord) (int64, error) {
	return 0, nil
}
func (p *purgeStore) GetHistory(context.Context, int64) (storage.HistoryRecord, error) {
	return storage.HistoryRecord{}, storage.ErrNotFound
}
func (p *purgeStore) ListHistory(context.Context, int, int, time.Time) ([]storage.HistoryRecord, error) {
	return nil, nil
}
func (p *purgeStore) DeleteHistory(context.Context, int64) (int64, error) { return 0, nil }

func (p *purgeStore) PurgeHistoryBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	p.purged = append(p.purged, cutoff)
	p.mu.Unlock()
	return 1, nil
}

func TestServiceStartStop(t *testing.T) {
	t.Parallel()

	st := &purgeStore{}
	svc := New(Config{
		Schedule:  "* * * * *",
		Retention: 360 * 24 * time.Hour,
	}, broadcast.NewRecorder(st, logx.Nop()), logx.Nop())

	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Idempotent start.
	if err := svc.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Stop(ctx)
	// Idempotent stop.
	svc.Stop(ctx)
}

func TestServiceRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	st := &purgeStore{}
	svc := New(Config{Schedule: "not a cron spec"}, broadcast.NewRecorder(st, logx.Nop()), logx.Nop())
	if err := svc.Start(); err == nil {
		t.Fatal("invalid schedule accepted")
	}
}
