package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"routinebot/internal/routine"
	logx "routinebot/pkg/logx"
)

// fileStore keeps the working set in memory and persists it as:
//   - <prefix>.audit.jsonl    append-only audit log
//   - <prefix>.snapshot.json  last compacted state
//   - <prefix>.journal.jsonl  mutations since the snapshot
//
// The journal is compacted into the snapshot every compactEvery writes and on Close.
type fileStore struct {
	log logx.Logger

	mu    sync.Mutex
	index *Memory

	auditFile    *os.File
	snapshotPath string
	journal      *os.File
	writes       int
	compactEvery int
}

const (
	opPutOverride    = "put_override"
	opDeleteOverride = "delete_override"
	opPutSettings    = "put_settings"
)

type journalRecord struct {
	Op       string                `json:"op"`
	BabyID   string                `json:"baby_id,omitempty"`
	Date     string                `json:"date,omitempty"`
	Override *routine.DayOverride  `json:"override,omitempty"`
	Settings *routine.BabySettings `json:"settings,omitempty"`
}

type snapshot struct {
	Overrides []routine.DayOverride  `json:"overrides"`
	Settings  []routine.BabySettings `json:"settings"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		index:        NewMemory(),
		snapshotPath: prefix + ".snapshot.json",
		compactEvery: 500,
	}
	if err := s.loadSnapshot(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	journalPath := prefix + ".journal.jsonl"
	if err := s.replay(journalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}
	s.auditFile = af
	s.journal = jf
	return s, nil
}

func (s *fileStore) loadSnapshot() error {
	f, err := os.Open(s.snapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	ctx := context.Background()
	for _, o := range snap.Overrides {
		_ = s.index.PutDayOverride(ctx, o)
	}
	for _, st := range snap.Settings {
		_ = s.index.PutBabySettings(ctx, st)
	}
	return nil
}

// replay applies journal records in order. A torn trailing line is skipped.
func (s *fileStore) replay(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	ctx := context.Background()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			s.log.Warn("skipping unreadable journal record", logx.Err(err))
			continue
		}
		s.apply(ctx, r)
	}
	return sc.Err()
}

func (s *fileStore) apply(ctx context.Context, r journalRecord) {
	switch r.Op {
	case opPutOverride:
		if r.Override != nil {
			_ = s.index.PutDayOverride(ctx, *r.Override)
		}
	case opDeleteOverride:
		_, _ = s.index.DeleteDayOverride(ctx, r.BabyID, r.Date)
	case opPutSettings:
		if r.Settings != nil {
			_ = s.index.PutBabySettings(ctx, *r.Settings)
		}
	}
}

// write appends r to the journal, then applies it to the index.
func (s *fileStore) write(ctx context.Context, r journalRecord) error {
	if s.journal == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	s.apply(ctx, r)
	s.writes++
	if s.compactEvery > 0 && s.writes%s.compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("journal compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) GetDayOverride(ctx context.Context, babyID, date string) (routine.DayOverride, bool, error) {
	return s.index.GetDayOverride(ctx, babyID, date)
}

func (s *fileStore) PutDayOverride(ctx context.Context, o routine.DayOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, journalRecord{Op: opPutOverride, Override: &o})
}

func (s *fileStore) DeleteDayOverride(ctx context.Context, babyID, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok, _ := s.index.GetDayOverride(ctx, babyID, date)
	if !ok {
		return false, nil
	}
	if err := s.write(ctx, journalRecord{Op: opDeleteOverride, BabyID: babyID, Date: date}); err != nil {
		return false, err
	}
	return true, nil
}

// PruneDayOverrides drops old days from the index and compacts, so the
// journal never has to record the deletions.
func (s *fileStore) PruneDayOverrides(ctx context.Context, before string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, ErrClosed
	}
	n, _ := s.index.PruneDayOverrides(ctx, before)
	if n == 0 {
		return 0, nil
	}
	return n, s.compactLocked()
}

func (s *fileStore) GetBabySettings(ctx context.Context, babyID string) (routine.BabySettings, bool, error) {
	return s.index.GetBabySettings(ctx, babyID)
}

func (s *fileStore) PutBabySettings(ctx context.Context, st routine.BabySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, journalRecord{Op: opPutSettings, Settings: &st})
}

func (s *fileStore) AppendAudit(_ context.Context, e routine.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

// compactLocked writes the index to the snapshot atomically and truncates the journal.
func (s *fileStore) compactLocked() error {
	s.index.mu.RLock()
	snap := snapshot{
		Overrides: make([]routine.DayOverride, 0, len(s.index.overrides)),
		Settings:  make([]routine.BabySettings, 0, len(s.index.settings)),
	}
	for _, o := range s.index.overrides {
		snap.Overrides = append(snap.Overrides, o)
	}
	for _, st := range s.index.settings {
		snap.Settings = append(snap.Settings, st)
	}
	s.index.mu.RUnlock()
	sort.Slice(snap.Overrides, func(i, j int) bool {
		a, b := snap.Overrides[i], snap.Overrides[j]
		if a.BabyID != b.BabyID {
			return a.BabyID < b.BabyID
		}
		return a.Date < b.Date
	})
	sort.Slice(snap.Settings, func(i, j int) bool { return snap.Settings[i].BabyID < snap.Settings[j].BabyID })

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.compactLocked(), s.journal.Close())
		s.journal = nil
	}
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	return errors.Join(errs...)
}
