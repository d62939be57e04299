package panel

import (
	"fmt"

	tele "gopkg.in/telebot.v4"
)

func panelMenuKB() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{{Text: "📣 New broadcast", Data: "pro:new"}},
		{{Text: "📊 History", Data: "pro:history"}},
		{{Text: "🧾 Export CSV", Data: "pro:export"}},
		{{Text: "🧹 Clean history", Data: "pro:cleanup"}},
	}}
}

func confirmKB() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{
			{Text: "✅ Send", Data: "pro:confirm"},
			{Text: "❌ Cancel", Data: "pro:cancel"},
		},
	}}
}

// controlKB is attached to the live progress message of a running batch.
func controlKB() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{
			{Text: "⏸ Pause", Data: "pro:pause"},
			{Text: "▶️ Resume", Data: "pro:resume"},
			{Text: "⛔ Stop", Data: "pro:stop"},
		},
	}}
}

func historyRowKB(id int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{
			{Text: "🔍 Details", Data: fmt.Sprintf("h:details:%d", id)},
			{Text: "🔁 Repeat", Data: fmt.Sprintf("h:repeat:%d", id)},
		},
		{
			{Text: "🗑 Delete", Data: fmt.Sprintf("h:delete:%d", id)},
		},
	}}
}

func exportMenuKB() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{
		{{Text: "📅 Last 7 days", Data: "exp:last7"}},
		{{Text: "🗓 Last 30 days", Data: "exp:last30"}},
		{{Text: "📁 All time", Data: "exp:all"}},
	}}
}
