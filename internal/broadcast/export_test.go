package broadcast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"supportbot/internal/storage"
	"supportbot/pkg/logx"
)

func TestExportRangeSince(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	if got := RangeLast7.Since(now); !got.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("last7 since = %v", got)
	}
	if got := RangeLast30.Since(now); !got.Equal(now.AddDate(0, 0, -30)) {
		t.Fatalf("last30 since = %v", got)
	}
	if got := RangeAll.Since(now); !got.IsZero() {
		t.Fatalf("all since = %v, want zero", got)
	}
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	his := newMemHistory()
	at := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	_, _ = his.InsertHistory(context.Background(), storage.HistoryRecord{
		CreatedAt: at, AdminID: 11, Type: "pro", MediaType: "text",
		SentCount: 240, TotalUsers: 250,
		MessageText: "hello, \"world\"\nsecond line",
	})
	_, _ = his.InsertHistory(context.Background(), storage.HistoryRecord{
		CreatedAt: at.Add(time.Hour), AdminID: 11, Type: "pro", MediaType: "photo",
		SentCount: 5, TotalUsers: 5, MessageText: "caption",
	})

	rec := NewRecorder(his, logx.Nop())
	data, name, err := rec.ExportCSV(context.Background(), RangeAll)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if name != "broadcast-history-all.csv" {
		t.Fatalf("filename = %q", name)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), data)
	}
	if lines[0] != "id,created_at,admin_id,type,media_type,sent_count,total_users,message_text" {
		t.Fatalf("header = %q", lines[0])
	}
	// Newest first.
	if lines[1] != `2,"2026-08-20 10:30:00",11,pro,photo,5,5,"caption"` {
		t.Fatalf("row 1 = %q", lines[1])
	}
	// Free text is flattened: commas, quotes and newlines never survive.
	if lines[2] != `1,"2026-08-20 09:30:00",11,pro,text,240,250,"hello  'world' second line"` {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestExportCSVEmptyRange(t *testing.T) {
	t.Parallel()

	his := newMemHistory()
	// One record, but far outside the 7-day window.
	_, _ = his.InsertHistory(context.Background(), storage.HistoryRecord{
		CreatedAt: time.Now().AddDate(0, 0, -90), AdminID: 1, Type: "pro",
		SentCount: 1, TotalUsers: 1, MessageText: "old",
	})
	rec := NewRecorder(his, logx.Nop())

	if _, _, err := rec.ExportCSV(context.Background(), RangeLast7); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("err = %v, want ErrNoRecords", err)
	}
}

func TestFlattenField(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a,b,c", "a b c"},
		{`say "hi"`, "say 'hi'"},
		{"line1\r\nline2", "line1  line2"},
		{"", ""},
	} {
		if got := flattenField(tc.in); got != tc.want {
			t.Errorf("flattenField(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
