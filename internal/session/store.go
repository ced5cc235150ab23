// Package session persists per-session values so that a dataset loaded on
// one workflow page can be picked up by the next.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// KV is the durable key-value store behind a Bridge.
type KV interface {
	Put(ctx context.Context, sessionID, key string, payload []byte) error
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// SQLStore keeps session entries in SQLite through gorm.
type SQLStore struct {
	db *gorm.DB
}

// OpenStore opens (and migrates) the SQLite file at path using the pure-Go
// driver; the parent directory is created when missing.
func OpenStore(path string) (*SQLStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("session store: db path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("session store: create dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session store: open: %w", err)
	}
	// SQLite + WAL: a couple of connections is enough for concurrent HTTP reads.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)

	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("session store: gorm: %w", err)
	}
	if err := db.AutoMigrate(&EntryModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("session store: migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Put(ctx context.Context, sessionID, key string, payload []byte) error {
	model := EntryModel{
		SessionID: sessionID,
		Key:       key,
		Payload:   datatypes.JSON(payload),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&model).Error
}

func (s *SQLStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	var model EntryModel
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND entry_key = ?", sessionID, key).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(model.Payload), true, nil
}

// Purge removes entries not written since before.
func (s *SQLStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("updated_at < ?", before.UTC()).
		Delete(&EntryModel{})
	return res.RowsAffected, res.Error
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MemoryKV is an in-process KV, used by the CLI and tests.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[[2]string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	updatedAt time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[[2]string]memoryEntry), now: time.Now}
}

func (m *MemoryKV) Put(_ context.Context, sessionID, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[[2]string{sessionID, key}] = memoryEntry{
		payload:   append([]byte(nil), payload...),
		updatedAt: m.now(),
	}
	return nil
}

func (m *MemoryKV) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[[2]string{sessionID, key}]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.payload...), true, nil
}

func (m *MemoryKV) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if e.updatedAt.Before(before) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

var (
	_ KV = (*SQLStore)(nil)
	_ KV = (*MemoryKV)(nil)
)
