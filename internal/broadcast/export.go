package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"supportbot/internal/storage"
)

// ErrNoRecords signals that an export matched nothing; callers tell the
// operator instead of producing an empty file.
var ErrNoRecords = errors.New("no history records match the filter")

// ExportRange is the time window of a CSV export.
type ExportRange string

const (
	RangeLast7  ExportRange = "last7"
	RangeLast30 ExportRange = "last30"
	RangeAll    ExportRange = "all"
)

// Since returns the lower time bound of the range (zero = unbounded).
func (r ExportRange) Since(now time.Time) time.Time {
	switch r {
	case RangeLast7:
		return now.AddDate(0, 0, -7)
	case RangeLast30:
		return now.AddDate(0, 0, -30)
	default:
		return time.Time{}
	}
}

const exportHeader = "id,created_at,admin_id,type,media_type,sent_count,total_users,message_text"

// ExportCSV renders the history matching the range as a CSV document,
// newest-first. Free-text fields are flattened: commas become spaces, double
// quotes become single quotes, newlines become spaces.
func (r *Recorder) ExportCSV(ctx context.Context, rng ExportRange) ([]byte, string, error) {
	rows, err := r.st.ListHistory(ctx, -1, 0, rng.Since(time.Now()))
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", ErrNoRecords
	}

	var sb strings.Builder
	sb.WriteString(exportHeader)
	sb.WriteByte('\n')
	for _, rec := range rows {
		sb.WriteString(exportLine(rec))
		sb.WriteByte('\n')
	}

	name := fmt.Sprintf("broadcast-history-%s.csv", rangeTitle(rng))
	return []byte(sb.String()), name, nil
}

func exportLine(rec storage.HistoryRecord) string {
	return fmt.Sprintf(`%d,"%s",%d,%s,%s,%d,%d,"%s"`,
		rec.ID,
		rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.AdminID,
		flattenField(rec.Type),
		flattenField(rec.MediaType),
		rec.SentCount,
		rec.TotalUsers,
		flattenField(rec.MessageText),
	)
}

// flattenField normalizes free text for the CSV: no commas, quotes or line
// breaks survive.
func flattenField(s string) string {
	repl := strings.NewReplacer(
		",", " ",
		`"`, "'",
		"\r", " ",
		"\n", " ",
	)
	return repl.Replace(s)
}

func rangeTitle(r ExportRange) string {
	switch r {
	case RangeLast7, RangeLast30:
		return string(r)
	default:
		return "all"
	}
}
