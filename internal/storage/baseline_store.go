package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// BaselineStore 基于 SQLite 的持有人基线持久化，进程重启后可恢复 24 小时对比基准
type BaselineStore struct {
	db *sql.DB
}

// NewBaselineStore 打开或创建 dbPath 处的数据库，路径为空时落在 $TMPDIR/jester-feed/data.db
func NewBaselineStore(dbPath string) (*BaselineStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "jester-feed", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // 单写者，WAL 允许并发读
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &BaselineStore{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *BaselineStore) Close() error {
	return s.db.Close()
}

func (s *BaselineStore) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS holder_baseline (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		holder_count INTEGER NOT NULL,
		recorded_at  INTEGER NOT NULL
	)`)
	return err
}

// SaveBaseline 覆盖写入唯一一行基线
func (s *BaselineStore) SaveBaseline(count int, recordedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO holder_baseline (id, holder_count, recorded_at)
		VALUES (1, ?, ?)`,
		count, recordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	return nil
}

// LoadBaseline 读取基线，ok 为 false 表示尚未写入过
func (s *BaselineStore) LoadBaseline() (int, time.Time, bool, error) {
	row := s.db.QueryRow(`SELECT holder_count, recorded_at FROM holder_baseline WHERE id = 1`)

	var count int
	var recordedAtNano int64
	err := row.Scan(&count, &recordedAtNano)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to load baseline: %w", err)
	}
	return count, time.Unix(0, recordedAtNano), true, nil
}
