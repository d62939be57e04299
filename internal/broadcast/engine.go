package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	rtsup "supportbot/internal/runtime/supervisor"
	"supportbot/internal/storage"
	kit "supportbot/internal/transport"
	"supportbot/pkg/logx"
)

// Transport is the slice of the transport adapter the engine needs. Each call
// is a single delivery attempt; the engine adds no retries of its own.
type Transport interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	Copy(ctx context.Context, to kit.ChatTarget, src kit.MessageRef) (kit.MessageRef, error)
	EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error
}

// RecipientSource resolves the ordered recipient list at batch start.
type RecipientSource interface {
	ActiveRecipients(ctx context.Context) ([]int64, error)
}

// Blocklist marks recipients the transport reported as permanently
// unreachable so future batches skip them.
type Blocklist interface {
	SetBanned(ctx context.Context, tgID int64, banned bool) error
}

type Config struct {
	// RatePerMinute bounds the aggregate send rate per batch; <= 0 disables
	// throttling.
	RatePerMinute float64
	// ProgressEvery is the progress-render cadence in successful sends.
	ProgressEvery int
	// PausePoll is how often a paused loop re-checks its control flags.
	PausePoll time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 100
	}
	if c.PausePoll <= 0 {
		c.PausePoll = time.Second
	}
	return c
}

// Engine runs broadcast batches: one background delivery loop per batch,
// throttled, cancellable and observable through the registry.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	tr  Transport
	src RecipientSource
	rec *Recorder
	blk Blocklist
	reg *Registry
	sup *rtsup.Supervisor
	log logx.Logger
}

func NewEngine(cfg Config, tr Transport, src RecipientSource, rec *Recorder, blk Blocklist, sup *rtsup.Supervisor, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		cfg: cfg.withDefaults(),
		tr:  tr,
		src: src,
		rec: rec,
		blk: blk,
		reg: NewRegistry(),
		sup: sup,
		log: log,
	}
}

// Apply swaps the engine tuning. In-flight batches pick up the new rate on
// their next send slot.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.withDefaults()
	e.mu.Unlock()
}

func (e *Engine) Registry() *Registry { return e.reg }

func (e *Engine) snapshotCfg() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Begin resolves recipients, registers the batch, posts the control message
// and schedules the delivery loop onto the supervisor, returning immediately.
//
// Synchronous failures: the recipient query (store unavailable — the batch
// never starts) and ErrAlreadyActive. Everything after this point is
// asynchronous and isolated per recipient.
func (e *Engine) Begin(ctx context.Context, operatorID int64, payload Payload, ctrl kit.ChatTarget, markup any) (*BatchState, error) {
	ids, err := e.src.ActiveRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	batch := NewBatch(operatorID, payload, ids)
	if err := e.reg.Begin(operatorID, batch); err != nil {
		return nil, err
	}

	opt := &kit.SendOptions{ParseMode: "HTML", ReplyMarkupAdapter: markup}
	ref, err := e.tr.SendText(ctx, ctrl, fmt.Sprintf("📤 Broadcast started (%d recipients)", len(ids)), opt)
	if err != nil {
		// The batch still runs; there is just no live progress surface.
		e.log.Warn("control message send failed", logx.Int64("operator_id", operatorID), logx.Err(err))
	}
	batch.setControlMsg(ref)

	rep := NewReporter(e.tr, ctrl, markup, e.log)
	e.sup.Go(fmt.Sprintf("broadcast.batch.%d", operatorID), func(runCtx context.Context) {
		e.run(runCtx, batch, rep)
	})
	return batch, nil
}

// Pause suspends the operator's batch at the next iteration boundary.
func (e *Engine) Pause(operatorID int64) error { return e.reg.Pause(operatorID) }

// Resume continues a paused batch from the next unattempted recipient.
func (e *Engine) Resume(operatorID int64) error { return e.reg.Resume(operatorID) }

// Stop terminates the batch; the in-flight send, if any, completes first.
func (e *Engine) Stop(operatorID int64) error { return e.reg.Stop(operatorID) }

// run is the delivery loop. It owns the batch counters; control flags are
// only read here, at iteration boundaries.
func (e *Engine) run(ctx context.Context, b *BatchState, rep *Reporter) {
	start := time.Now()
	defer e.reg.End(b.OperatorID)

	log := e.log.With(logx.Int64("operator_id", b.OperatorID))
	total := len(b.Recipients)
	log.Info("broadcast started", logx.Int("total", total))

	// One governor per batch, shared across its whole run; rebuilt in place
	// when a config reload changes the rate.
	govRate := e.snapshotCfg().RatePerMinute
	gov := NewGovernor(govRate)

loop:
	for i, id := range b.Recipients {
		if b.Stopped() || ctx.Err() != nil {
			break
		}
		for b.Paused() {
			if b.Stopped() || ctx.Err() != nil {
				break loop
			}
			if !sleepCtx(ctx, e.snapshotCfg().PausePoll) {
				break loop
			}
		}

		cfg := e.snapshotCfg()
		if cfg.RatePerMinute != govRate {
			govRate = cfg.RatePerMinute
			gov = NewGovernor(govRate)
		}
		if err := gov.Wait(ctx); err != nil {
			break
		}

		err := e.deliver(ctx, id, b.Payload)
		if err != nil {
			b.markFailed()
			log.Warn("broadcast send failed", logx.Int64("recipient", id), logx.Err(err))
			if kit.IsPermanent(err) && e.blk != nil {
				if berr := e.blk.SetBanned(ctx, id, true); berr != nil {
					log.Warn("mark unreachable failed", logx.Int64("recipient", id), logx.Err(berr))
				}
			}
		} else {
			b.markSent()
		}

		if (err == nil && b.Snapshot().Sent%cfg.ProgressEvery == 0) || i == total-1 {
			rep.Update(ctx, b)
		}
	}

	snap := b.Snapshot()
	rep.Update(ctx, b)

	_, perr := e.rec.Record(ctx, storage.HistoryRecord{
		AdminID:     b.OperatorID,
		Type:        "pro",
		MediaType:   b.Payload.ContentKind(),
		SentCount:   snap.Sent,
		TotalUsers:  total,
		MessageText: b.Payload.Excerpt(),
	})
	if perr != nil {
		log.Error("history write failed", logx.Err(perr))
	}
	rep.Final(ctx, b, perr != nil)

	fields := []logx.Field{
		logx.Int("sent", snap.Sent),
		logx.Int("failed", snap.Failed),
		logx.Int("total", total),
		logx.Duration("took", time.Since(start)),
	}
	if snap.Stopped {
		log.Info("broadcast stopped", fields...)
	} else {
		log.Info("broadcast finished", fields...)
	}
}

// deliver performs one single-attempt send with exhaustive payload dispatch.
func (e *Engine) deliver(ctx context.Context, recipient int64, p Payload) error {
	to := kit.ChatTarget{ChatID: recipient}
	switch p.Kind {
	case KindText:
		_, err := e.tr.SendText(ctx, to, p.Text, nil)
		return err
	case KindMediaRef:
		_, err := e.tr.Copy(ctx, to, kit.MessageRef{ChatID: p.Media.FromChatID, MessageID: p.Media.MessageID})
		return err
	default:
		return fmt.Errorf("unknown payload kind %d", p.Kind)
	}
}

// sleepCtx sleeps for d, returning false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
