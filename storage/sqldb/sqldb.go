package sqldb

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"logbook/storage"
)

const defaultFilePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// record is the single table backing the key-value view.
type record struct {
	Key   string `gorm:"column:entity_key;primaryKey;size:512"`
	Value []byte `gorm:"column:entity_value;not null"`
}

func (record) TableName() string { return "entities" }

// DB adapts a gorm connection to storage.Database.
type DB struct {
	db *gorm.DB
}

var _ storage.Database = (*DB)(nil)

// Open connects to driver ("sqlite" or "postgres") and migrates the table.
func Open(driver, dsn string) (*DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("sql dsn required")
	}
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(trimmed)
	case "postgres":
		dialector = postgres.Open(trimmed)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate entities: %w", err)
	}
	return &DB{db: db}, nil
}

// FileDSN converts a filesystem path into an on-disk SQLite DSN.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("sqlite path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

func (d *DB) Put(key []byte, value []byte) error {
	return upsert(d.db, key, value)
}

// PutBatch upserts every write inside one transaction.
func (d *DB) PutBatch(writes []storage.Write) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, w := range writes {
			if err := upsert(tx, w.Key, w.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(db *gorm.DB, key, value []byte) error {
	rec := record{Key: string(key), Value: value}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entity_value"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (d *DB) Get(key []byte) ([]byte, error) {
	var rec record
	err := d.db.Take(&rec, "entity_key = ?", string(key)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return rec.Value, nil
}

func (d *DB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	rows, err := d.db.Model(&record{}).
		Where("entity_key LIKE ? ESCAPE '\\'", escapeLike(string(prefix))+"%").
		Order("entity_key ASC").
		Rows()
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec record
		if err := d.db.ScanRows(rows, &rec); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn([]byte(rec.Key), rec.Value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close releases the pooled connections.
func (d *DB) Close() {
	if d == nil || d.db == nil {
		return
	}
	if sqlDB, err := d.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
