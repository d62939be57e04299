package broadcast

import (
	"context"
	"testing"

	kit "supportbot/internal/transport"
	"supportbot/pkg/logx"
)

func TestRenderProgress(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		snap Snapshot
		want string
	}{
		{
			"running",
			Snapshot{Sent: 40, Failed: 2, Total: 100},
			"📊 Sent: 40/100\n❌ Failed: 2",
		},
		{
			"paused",
			Snapshot{Sent: 3, Total: 10, Paused: true},
			"📊 Sent: 3/10\n❌ Failed: 0\n⏸ Paused",
		},
		{
			"stopped trumps paused",
			Snapshot{Sent: 5, Failed: 1, Total: 20, Paused: true, Stopped: true},
			"📊 Sent: 5/20\n❌ Failed: 1\n⛔ Stopped",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderProgress(tc.snap); got != tc.want {
				t.Errorf("renderProgress = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReporterSkipsMissingControlMessage(t *testing.T) {
	t.Parallel()

	tr := &stubTransport{}
	rep := NewReporter(tr, kit.ChatTarget{ChatID: ctrlChatID}, nil, logx.Nop())

	b := NewBatch(1, TextPayload("x"), []int64{1, 2})
	// ControlMsg was never set (the initial send failed): updates are no-ops.
	rep.Update(context.Background(), b)

	tr.mu.Lock()
	edits := len(tr.edits)
	tr.mu.Unlock()
	if edits != 0 {
		t.Fatalf("edited %d times without a control message", edits)
	}
}

func TestReporterEditsControlMessage(t *testing.T) {
	t.Parallel()

	tr := &stubTransport{}
	rep := NewReporter(tr, kit.ChatTarget{ChatID: ctrlChatID}, nil, logx.Nop())

	b := NewBatch(1, TextPayload("x"), []int64{1, 2, 3})
	b.setControlMsg(kit.MessageRef{ChatID: ctrlChatID, MessageID: 42})
	b.markSent()
	b.markSent()
	b.markFailed()

	rep.Update(context.Background(), b)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(tr.edits))
	}
	if tr.edits[0] != "📊 Sent: 2/3\n❌ Failed: 1" {
		t.Fatalf("edit text = %q", tr.edits[0])
	}
}
