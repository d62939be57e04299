package broadcast

import (
	"context"
	"fmt"

	kit "supportbot/internal/transport"
	"supportbot/pkg/logx"
)

// Reporter renders live batch progress into the single control message,
// editing it in place so the operator sees one evolving status surface with
// the pause/resume/stop buttons attached. Edit failures (message deleted,
// rate limited) are logged and ignored: rendering must never abort a batch.
type Reporter struct {
	tr     Transport
	log    logx.Logger
	target kit.ChatTarget
	markup any // adapter-specific control keyboard
}

func NewReporter(tr Transport, target kit.ChatTarget, markup any, log logx.Logger) *Reporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reporter{tr: tr, log: log, target: target, markup: markup}
}

// Update re-renders the control message from the batch counters.
func (r *Reporter) Update(ctx context.Context, b *BatchState) {
	ref := b.ControlMsg()
	if ref.MessageID == 0 {
		return
	}
	snap := b.Snapshot()
	opt := &kit.SendOptions{ParseMode: "HTML", ReplyMarkupAdapter: r.markup}
	if err := r.tr.EditText(ctx, ref, renderProgress(snap), opt); err != nil {
		r.log.Warn("progress render failed",
			logx.Int64("operator_id", b.OperatorID), logx.Err(err))
	}
}

// Final posts the completion tally as a fresh message (the control message
// keeps its last progress render). persistWarn appends a warning when the
// history write failed: the batch is still complete, the audit trail is not.
func (r *Reporter) Final(ctx context.Context, b *BatchState, persistWarn bool) {
	snap := b.Snapshot()
	var text string
	if snap.Stopped {
		text = fmt.Sprintf("⛔ Broadcast stopped.\n📨 Sent %d/%d, failed %d.", snap.Sent, snap.Total, snap.Failed)
	} else {
		text = fmt.Sprintf("✅ Broadcast finished.\n📨 Sent %d/%d, failed %d.", snap.Sent, snap.Total, snap.Failed)
	}
	if persistWarn {
		text += "\n⚠️ History write failed — this run is missing from the audit log."
	}
	if _, err := r.tr.SendText(ctx, r.target, text, &kit.SendOptions{ParseMode: "HTML"}); err != nil {
		r.log.Warn("final tally send failed",
			logx.Int64("operator_id", b.OperatorID), logx.Err(err))
	}
}

func renderProgress(s Snapshot) string {
	text := fmt.Sprintf("📊 Sent: %d/%d\n❌ Failed: %d", s.Sent, s.Total, s.Failed)
	switch {
	case s.Stopped:
		text += "\n⛔ Stopped"
	case s.Paused:
		text += "\n⏸ Paused"
	}
	return text
}
