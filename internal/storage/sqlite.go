package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"supportbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// timeFormat is a fixed-width RFC3339 variant. RFC3339Nano drops trailing
// fractional zeros, which breaks lexicographic comparison of sub-second
// neighbors in ORDER BY / range predicates; padded nanoseconds keep string
// order identical to time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the sqlite database at cfg.Path and applies the
// embedded schema.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if log.IsZero() {
		log = logx.Nop()
	}
	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertUser(ctx context.Context, tgID int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(tg_id, username, banned, created_at) VALUES(?,?,0,?)
		 ON CONFLICT(tg_id) DO UPDATE SET username=excluded.username`,
		tgID, nullStr(username), time.Now().UTC().Format(timeFormat),
	)
	return err
}

func (s *sqliteStore) SetBanned(ctx context.Context, tgID int64, banned bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET banned=? WHERE tg_id=?`, boolInt(banned), tgID)
	return err
}

func (s *sqliteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *sqliteStore) ActiveRecipients(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tg_id FROM users WHERE banned=0 ORDER BY tg_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v.String, true, nil
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

func (s *sqliteStore) InsertHistory(ctx context.Context, rec HistoryRecord) (int64, error) {
	at := rec.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO broadcast_history(created_at, admin_id, type, media_type, sent_count, total_users, message_text)
		 VALUES(?,?,?,?,?,?,?)`,
		at.UTC().Format(timeFormat), rec.AdminID, rec.Type, nullStr(rec.MediaType),
		rec.SentCount, rec.TotalUsers, nullStr(rec.MessageText),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) GetHistory(ctx context.Context, id int64) (HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, admin_id, type, media_type, sent_count, total_users, message_text
		 FROM broadcast_history WHERE id=?`, id)
	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return HistoryRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *sqliteStore) ListHistory(ctx context.Context, limit, offset int, since time.Time) ([]HistoryRecord, error) {
	// limit == 0 picks the panel default; negative means no limit
	// (sqlite treats LIMIT -1 as unbounded).
	if limit == 0 {
		limit = 15
	}
	if limit < 0 {
		limit = -1
	}
	q := `SELECT id, created_at, admin_id, type, media_type, sent_count, total_users, message_text
	      FROM broadcast_history`
	args := []any{}
	if !since.IsZero() {
		q += ` WHERE created_at > ?`
		args = append(args, since.UTC().Format(timeFormat))
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteHistory(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM broadcast_history WHERE id=?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) PurgeHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM broadcast_history WHERE created_at < ?`,
		cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(r rowScanner) (HistoryRecord, error) {
	var (
		rec   HistoryRecord
		at    string
		media sql.NullString
		text  sql.NullString
	)
	if err := r.Scan(&rec.ID, &at, &rec.AdminID, &rec.Type, &media, &rec.SentCount, &rec.TotalUsers, &text); err != nil {
		return HistoryRecord{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return HistoryRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = ts
	rec.MediaType = media.String
	rec.MessageText = text.String
	return rec, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
