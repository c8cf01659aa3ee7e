package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"routinebot/internal/routine"
	logx "routinebot/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps SQLite free of SQLITE_BUSY under the bot's load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}
	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) GetDayOverride(ctx context.Context, babyID, date string) (routine.DayOverride, bool, error) {
	var (
		o                routine.DayOverride
		items            string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_rule_id, items, created_at, updated_at FROM day_overrides WHERE baby_id = ? AND date = ?`,
		babyID, date,
	).Scan(&o.ID, &o.SourceRuleID, &items, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return routine.DayOverride{}, false, nil
	}
	if err != nil {
		return routine.DayOverride{}, false, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return routine.DayOverride{}, false, fmt.Errorf("decode items: %w", err)
	}
	o.BabyID, o.Date = babyID, date
	o.CreatedAt = parseTime(created)
	o.UpdatedAt = parseTime(updated)
	return o, true, nil
}

func (s *sqliteStore) PutDayOverride(ctx context.Context, o routine.DayOverride) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO day_overrides(baby_id, date, id, source_rule_id, items, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(baby_id, date) DO UPDATE SET
		   id=excluded.id, source_rule_id=excluded.source_rule_id, items=excluded.items,
		   created_at=excluded.created_at, updated_at=excluded.updated_at`,
		o.BabyID, o.Date, o.ID, o.SourceRuleID, string(items), formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	return err
}

func (s *sqliteStore) DeleteDayOverride(ctx context.Context, babyID, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM day_overrides WHERE baby_id = ? AND date = ?`, babyID, date)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) PruneDayOverrides(ctx context.Context, before string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM day_overrides WHERE date < ?`, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) GetBabySettings(ctx context.Context, babyID string) (routine.BabySettings, bool, error) {
	st := routine.BabySettings{BabyID: babyID}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT first_wake_time, rule_id, updated_at FROM baby_settings WHERE baby_id = ?`, babyID,
	).Scan(&st.FirstWakeTime, &st.RuleID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return routine.BabySettings{}, false, nil
	}
	if err != nil {
		return routine.BabySettings{}, false, err
	}
	st.UpdatedAt = parseTime(updated)
	return st, true, nil
}

func (s *sqliteStore) PutBabySettings(ctx context.Context, st routine.BabySettings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO baby_settings(baby_id, first_wake_time, rule_id, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(baby_id) DO UPDATE SET
		   first_wake_time=excluded.first_wake_time, rule_id=excluded.rule_id, updated_at=excluded.updated_at`,
		st.BabyID, st.FirstWakeTime, st.RuleID, formatTime(st.UpdatedAt),
	)
	return err
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e routine.AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor, baby_id, date, action, target, ok, err, meta) VALUES(?,?,?,?,?,?,?,?,?)`,
		formatTime(e.At), nullStr(e.Actor), e.BabyID, nullStr(e.Date), e.Action, nullStr(e.Target), ok,
		nullStr(e.Error), nullStr(e.MetaJSON),
	)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
