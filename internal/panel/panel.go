// Package panel is the operator-facing command surface: it turns admin-chat
// commands and inline-button callbacks into engine, history and export calls.
// It holds no delivery logic of its own.
package panel

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"supportbot/internal/broadcast"
	"supportbot/internal/storage"
	kit "supportbot/internal/transport"
	"supportbot/pkg/logx"
)

type Config struct {
	AdminChatID     int64
	HistoryPageSize int
	Retention       time.Duration
}

// settingBroadcastTopic stores the forum topic /panel was last opened in.
// Batch control messages are bound to that thread so progress stays in one
// place no matter where the confirm button was pressed.
const settingBroadcastTopic = "broadcast_topic_id"

type Panel struct {
	cfg Config
	ad  kit.Adapter
	eng *broadcast.Engine
	rec *broadcast.Recorder
	st  storage.Store
	log logx.Logger

	// pendingMu guards the per-operator broadcast draft state:
	// "waiting for payload" and "payload captured, awaiting confirm".
	pendingMu sync.Mutex
	awaiting  map[int64]bool
	drafts    map[int64]broadcast.Payload
}

func New(cfg Config, ad kit.Adapter, eng *broadcast.Engine, rec *broadcast.Recorder, st storage.Store, log logx.Logger) *Panel {
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 15
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Panel{
		cfg:      cfg,
		ad:       ad,
		eng:      eng,
		rec:      rec,
		st:       st,
		log:      log,
		awaiting: map[int64]bool{},
		drafts:   map[int64]broadcast.Payload{},
	}
}

// Run consumes adapter updates until ctx is done.
func (p *Panel) Run(ctx context.Context, updates <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			switch up.Kind {
			case kit.UpdateMessage:
				if up.Message != nil {
					p.handleMessage(ctx, up.Message)
				}
			case kit.UpdateCallback:
				if up.Callback != nil {
					p.handleCallback(ctx, up.Callback)
				}
			}
		}
	}
}

func (p *Panel) handleMessage(ctx context.Context, m *kit.Message) {
	// Private chats: register the user so broadcasts can reach them.
	if !m.IsGroup {
		if err := p.st.UpsertUser(ctx, m.FromID, m.FromUsername); err != nil {
			p.log.Warn("user upsert failed", logx.Int64("tg_id", m.FromID), logx.Err(err))
		}
		if strings.HasPrefix(m.Text, "/start") {
			p.reply(ctx, m, "👋 Hi! Write your question here and an operator will get back to you.")
		}
		return
	}

	if m.ChatID != p.cfg.AdminChatID {
		return
	}

	switch {
	case strings.HasPrefix(m.Text, "/panel"):
		p.bindControlTopic(ctx, m.ThreadID)
		p.sendTo(ctx, m.ChatID, m.ThreadID, "⚙️ <b>Control panel</b>\nPick an action:", panelMenuKB())
	default:
		p.maybeCaptureDraft(ctx, m)
	}
}

// maybeCaptureDraft turns the next admin message into a broadcast draft when
// that operator previously pressed "New broadcast".
func (p *Panel) maybeCaptureDraft(ctx context.Context, m *kit.Message) {
	p.pendingMu.Lock()
	waiting := p.awaiting[m.FromID]
	if waiting {
		delete(p.awaiting, m.FromID)
	}
	p.pendingMu.Unlock()
	if !waiting {
		return
	}

	var payload broadcast.Payload
	if m.MediaType != "" {
		payload = broadcast.MediaPayload(m.ChatID, m.ID, m.MediaType, m.Caption)
	} else {
		if strings.TrimSpace(m.Text) == "" {
			p.reply(ctx, m, "⚠️ Empty message; send text or media to broadcast.")
			return
		}
		payload = broadcast.TextPayload(m.Text)
	}

	p.pendingMu.Lock()
	p.drafts[m.FromID] = payload
	p.pendingMu.Unlock()

	p.sendTo(ctx, m.ChatID, m.ThreadID, "🟡 Preview ready. Press ✅ to start the broadcast.", confirmKB())
}

func (p *Panel) handleCallback(ctx context.Context, cb *kit.Callback) {
	if cb.ChatID != p.cfg.AdminChatID {
		return
	}
	ack := ""
	switch {
	case cb.Data == "pro:new":
		p.pendingMu.Lock()
		p.awaiting[cb.FromID] = true
		delete(p.drafts, cb.FromID)
		p.pendingMu.Unlock()
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "🧾 Send one message (text or media) to broadcast.\nA preview with confirm buttons follows.", nil)
		ack = "Waiting for the broadcast message."

	case cb.Data == "pro:confirm":
		ack = p.confirmBroadcast(ctx, cb)

	case cb.Data == "pro:cancel":
		p.pendingMu.Lock()
		delete(p.awaiting, cb.FromID)
		delete(p.drafts, cb.FromID)
		p.pendingMu.Unlock()
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "❎ Broadcast cancelled.", nil)

	case cb.Data == "pro:pause":
		ack = p.controlBatch(ctx, cb, p.eng.Pause, "⏸ Broadcast paused.")
	case cb.Data == "pro:resume":
		ack = p.controlBatch(ctx, cb, p.eng.Resume, "▶️ Resumed.")
	case cb.Data == "pro:stop":
		ack = p.controlBatch(ctx, cb, p.eng.Stop, "⛔ Broadcast stopped.")

	case cb.Data == "pro:history":
		p.showHistory(ctx, cb)
	case cb.Data == "pro:export":
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "🧾 What should be exported?", exportMenuKB())
	case cb.Data == "pro:cleanup":
		ack = p.cleanupHistory(ctx, cb)

	case strings.HasPrefix(cb.Data, "exp:"):
		ack = p.export(ctx, cb, broadcast.ExportRange(strings.TrimPrefix(cb.Data, "exp:")))

	case strings.HasPrefix(cb.Data, "h:"):
		p.historyAction(ctx, cb)
	}

	if err := p.ad.AnswerCallback(ctx, cb.ID, ack); err != nil {
		p.log.Debug("callback answer failed", logx.Err(err))
	}
}

func (p *Panel) bindControlTopic(ctx context.Context, threadID int) {
	if err := p.st.SetSetting(ctx, settingBroadcastTopic, strconv.Itoa(threadID)); err != nil {
		p.log.Warn("control topic bind failed", logx.Int("thread_id", threadID), logx.Err(err))
	}
}

// controlThread resolves the thread for batch control messages: the stored
// binding when present, otherwise the thread the callback arrived in.
func (p *Panel) controlThread(ctx context.Context, fallback int) int {
	v, ok, err := p.st.GetSetting(ctx, settingBroadcastTopic)
	if err != nil {
		p.log.Warn("control topic lookup failed", logx.Err(err))
		return fallback
	}
	if !ok {
		return fallback
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return id
}

func (p *Panel) confirmBroadcast(ctx context.Context, cb *kit.Callback) string {
	p.pendingMu.Lock()
	payload, ok := p.drafts[cb.FromID]
	if ok {
		delete(p.drafts, cb.FromID)
	}
	p.pendingMu.Unlock()
	if !ok {
		return "No pending broadcast."
	}

	ctrl := kit.ChatTarget{ChatID: cb.ChatID, ThreadID: p.controlThread(ctx, cb.ThreadID)}
	_, err := p.eng.Begin(ctx, cb.FromID, payload, ctrl, controlKB())
	switch {
	case errors.Is(err, broadcast.ErrAlreadyActive):
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "🚫 You already have a broadcast in flight. Stop it before starting a new one.", nil)
		return "Already active."
	case err != nil:
		p.log.Error("broadcast start failed", logx.Int64("operator_id", cb.FromID), logx.Err(err))
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "⚠️ Could not start the broadcast: store unavailable.", nil)
		return "Start failed."
	default:
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "🚀 Broadcast launched.", nil)
		return "Launched."
	}
}

func (p *Panel) controlBatch(ctx context.Context, cb *kit.Callback, op func(int64) error, done string) string {
	if err := op(cb.FromID); err != nil {
		return "No active broadcast."
	}
	p.sendTo(ctx, cb.ChatID, cb.ThreadID, done, nil)
	return ""
}

func (p *Panel) showHistory(ctx context.Context, cb *kit.Callback) {
	rows, err := p.rec.List(ctx, p.cfg.HistoryPageSize, 0, time.Time{})
	if err != nil {
		p.log.Warn("history list failed", logx.Err(err))
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "⚠️ Could not load history.", nil)
		return
	}
	if len(rows) == 0 {
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "🕒 Broadcast history is empty.", nil)
		return
	}

	lines := []string{"<b>📊 Recent broadcasts:</b>"}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf(
			"• <code>#%d</code> • %s • %s • %s\n  %d/%d (%.1f%%) — %s",
			r.ID, r.CreatedAt.Format("02.01 15:04"), strings.ToUpper(r.Type), r.MediaType,
			r.SentCount, r.TotalUsers, successRate(r), html.EscapeString(preview(r.MessageText, 120)),
		))
	}
	p.sendTo(ctx, cb.ChatID, cb.ThreadID, strings.Join(lines, "\n"), nil)

	// One action keyboard per row; editing a single long message runs into
	// Telegram markup limits.
	for _, r := range rows {
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, fmt.Sprintf("#%d • actions:", r.ID), historyRowKB(r.ID))
	}
}

func (p *Panel) historyAction(ctx context.Context, cb *kit.Callback) {
	parts := strings.SplitN(cb.Data, ":", 3)
	if len(parts) != 3 {
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return
	}

	switch parts[1] {
	case "details":
		rec, err := p.rec.Detail(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			p.sendTo(ctx, cb.ChatID, cb.ThreadID, "❓ Record not found.", nil)
			return
		}
		if err != nil {
			p.log.Warn("history detail failed", logx.Int64("id", id), logx.Err(err))
			return
		}
		text := fmt.Sprintf(
			"<b>🔍 Broadcast #%d</b>\n🗓 %s\n👤 admin: <code>%d</code>\n📦 type: <code>%s</code> • media: <code>%s</code>\n📨 %d/%d • %.1f%%\n📝 Text:\n<code>%s</code>",
			rec.ID, rec.CreatedAt.Format("02.01.2006 15:04"), rec.AdminID, rec.Type, rec.MediaType,
			rec.SentCount, rec.TotalUsers, successRate(rec), html.EscapeString(rec.MessageText),
		)
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, text, nil)

	case "repeat":
		rec, err := p.rec.Detail(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			p.sendTo(ctx, cb.ChatID, cb.ThreadID, "❓ Record not found.", nil)
			return
		}
		if err != nil {
			p.log.Warn("history repeat lookup failed", logx.Int64("id", id), logx.Err(err))
			return
		}
		if strings.TrimSpace(rec.MessageText) == "" {
			p.sendTo(ctx, cb.ChatID, cb.ThreadID, "⚠️ No text stored for this record. Repeat media broadcasts via a new broadcast.", nil)
			return
		}
		ctrl := kit.ChatTarget{ChatID: cb.ChatID, ThreadID: p.controlThread(ctx, cb.ThreadID)}
		_, err = p.eng.Begin(ctx, cb.FromID, broadcast.TextPayload(rec.MessageText), ctrl, controlKB())
		if errors.Is(err, broadcast.ErrAlreadyActive) {
			p.sendTo(ctx, cb.ChatID, cb.ThreadID, "🚫 You already have a broadcast in flight. Stop it before starting a new one.", nil)
			return
		}
		if err != nil {
			p.log.Error("history repeat start failed", logx.Int64("id", id), logx.Err(err))
			p.sendTo(ctx, cb.ChatID, cb.ThreadID, "⚠️ Could not start the broadcast: store unavailable.", nil)
			return
		}
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, fmt.Sprintf("🚀 Repeating broadcast #%d.", id), nil)

	case "delete":
		n, err := p.rec.Delete(ctx, id)
		if err != nil {
			p.log.Warn("history delete failed", logx.Int64("id", id), logx.Err(err))
			return
		}
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, fmt.Sprintf("🗑 Deleted: %d.", n), nil)
	}
}

func (p *Panel) export(ctx context.Context, cb *kit.Callback, rng broadcast.ExportRange) string {
	data, name, err := p.rec.ExportCSV(ctx, rng)
	if errors.Is(err, broadcast.ErrNoRecords) {
		p.sendTo(ctx, cb.ChatID, cb.ThreadID, "🔍 Nothing found for the selected filter.", nil)
		return "No records."
	}
	if err != nil {
		p.log.Warn("history export failed", logx.String("range", string(rng)), logx.Err(err))
		return "Export failed."
	}
	doc := kit.Document{Name: name, Caption: "🧾 Broadcast history export", Data: data}
	if _, err := p.ad.SendDocument(ctx, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, doc); err != nil {
		p.log.Warn("export document send failed", logx.Err(err))
		return "Export failed."
	}
	return "Done."
}

func (p *Panel) cleanupHistory(ctx context.Context, cb *kit.Callback) string {
	n, err := p.rec.PurgeOlderThan(ctx, p.cfg.Retention)
	if err != nil {
		p.log.Warn("manual history purge failed", logx.Err(err))
		return "Cleanup failed."
	}
	p.sendTo(ctx, cb.ChatID, cb.ThreadID, fmt.Sprintf("🧹 Cleanup done: %d old records removed.", n), nil)
	return ""
}

func (p *Panel) reply(ctx context.Context, m *kit.Message, text string) {
	p.sendTo(ctx, m.ChatID, m.ThreadID, text, nil)
}

func (p *Panel) sendTo(ctx context.Context, chatID int64, threadID int, text string, markup any) {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, ReplyMarkupAdapter: markup}
	if _, err := p.ad.SendText(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, text, opt); err != nil {
		p.log.Warn("panel send failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

func successRate(r storage.HistoryRecord) float64 {
	if r.TotalUsers == 0 {
		return 0
	}
	return 100 * float64(r.SentCount) / float64(r.TotalUsers)
}

func preview(s string, n int) string {
	rs := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(rs) <= n {
		return string(rs)
	}
	return string(rs[:n]) + "…"
}
