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

	"streamwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the sqlite tenant store and applies
// migrations.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
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

const tenantCols = `platform, chat_id, channel_ref, announce_chat_id, announce_thread_id, ping_text,
	stable_threshold, poll_seconds, offline_grace_seconds, enabled,
	last_check_ms, last_seen_live_ms, announced, last_msg_chat_id, last_msg_id`

func (s *sqliteStore) GetTenant(ctx context.Context, key TenantKey) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE platform = ? AND chat_id = ?`,
		string(key.Platform), key.ChatID,
	)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *sqliteStore) ListEnabled(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE enabled = 1 ORDER BY platform, chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutTenant(ctx context.Context, cfg TenantConfig) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (platform, chat_id, channel_ref, announce_chat_id, announce_thread_id, ping_text,
			stable_threshold, poll_seconds, offline_grace_seconds, enabled,
			last_check_ms, last_seen_live_ms, announced, last_msg_chat_id, last_msg_id, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,0,0,0,0,0,datetime('now'))
		 ON CONFLICT(platform, chat_id) DO UPDATE SET
			channel_ref=excluded.channel_ref,
			announce_chat_id=excluded.announce_chat_id,
			announce_thread_id=excluded.announce_thread_id,
			ping_text=excluded.ping_text,
			stable_threshold=excluded.stable_threshold,
			poll_seconds=excluded.poll_seconds,
			offline_grace_seconds=excluded.offline_grace_seconds,
			enabled=excluded.enabled,
			last_check_ms=0, last_seen_live_ms=0, announced=0,
			last_msg_chat_id=0, last_msg_id=0,
			updated_at=datetime('now')`,
		string(cfg.Key.Platform), cfg.Key.ChatID, cfg.ChannelRef,
		cfg.AnnounceChatID, cfg.AnnounceThreadID, cfg.PingText,
		cfg.StableThreshold, cfg.PollSeconds, cfg.OfflineGraceSeconds, boolToInt(cfg.Enabled),
	)
	return err
}

func (s *sqliteStore) DeleteTenant(ctx context.Context, key TenantKey) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tenants WHERE platform = ? AND chat_id = ?`,
		string(key.Platform), key.ChatID)
	return err
}

func (s *sqliteStore) MarkChecked(ctx context.Context, key TenantKey, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET last_check_ms = ?, updated_at = datetime('now')
		 WHERE platform = ? AND chat_id = ?`,
		t.UnixMilli(), string(key.Platform), key.ChatID)
	return err
}

func (s *sqliteStore) SetLastSeenLive(ctx context.Context, key TenantKey, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET last_seen_live_ms = ?, updated_at = datetime('now')
		 WHERE platform = ? AND chat_id = ?`,
		t.UnixMilli(), string(key.Platform), key.ChatID)
	return err
}

func (s *sqliteStore) SetAnnounced(ctx context.Context, key TenantKey, announced bool, ref *MsgRef) error {
	if announced && ref != nil {
		// Flag and message ref commit as one unit.
		_, err := s.db.ExecContext(ctx,
			`UPDATE tenants SET announced = 1, last_msg_chat_id = ?, last_msg_id = ?, updated_at = datetime('now')
			 WHERE platform = ? AND chat_id = ?`,
			ref.ChatID, ref.MessageID, string(key.Platform), key.ChatID)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET announced = ?, updated_at = datetime('now')
		 WHERE platform = ? AND chat_id = ?`,
		boolToInt(announced), string(key.Platform), key.ChatID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(r rowScanner) (*Tenant, error) {
	var (
		t                       Tenant
		platform                string
		enabled, announced      int
		lastCheckMS, lastLiveMS int64
	)
	err := r.Scan(
		&platform, &t.Key.ChatID, &t.ChannelRef, &t.AnnounceChatID, &t.AnnounceThreadID, &t.PingText,
		&t.StableThreshold, &t.PollSeconds, &t.OfflineGraceSeconds, &enabled,
		&lastCheckMS, &lastLiveMS, &announced, &t.LastMsgChatID, &t.LastMsgID,
	)
	if err != nil {
		return nil, err
	}
	t.Key.Platform = Platform(platform)
	t.Enabled = enabled != 0
	t.Announced = announced != 0
	if lastCheckMS > 0 {
		t.LastCheck = time.UnixMilli(lastCheckMS)
	}
	if lastLiveMS > 0 {
		t.LastSeenLive = time.UnixMilli(lastLiveMS)
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
