// Package indexer stores committed ledger events in a relational database so
// clients can page through the activity of a pool.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sharepool/core/events"
)

// DefaultLimit bounds ListByPool when the caller passes no limit.
const DefaultLimit = 100

// Activity is one committed event.
type Activity struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64            `gorm:"uniqueIndex;not null" json:"sequence"`
	Type       string            `gorm:"index;not null" json:"type"`
	Pool       string            `gorm:"index" json:"pool,omitempty"`
	Attributes map[string]string `gorm:"serializer:json" json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// AutoMigrate creates or updates the activity schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Activity{})
}

// Open connects to the configured database. driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	return gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// Indexer persists events it receives as an events.Emitter.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu  sync.Mutex
	seq uint64
}

// New migrates db and resumes numbering after the last stored activity.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last struct{ Max *uint64 }
	if err := db.Model(&Activity{}).Select("MAX(sequence) AS max").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("indexer: resume: %w", err)
	}
	idx := &Indexer{db: db, logger: log, nowFn: time.Now}
	if last.Max != nil {
		idx.seq = *last.Max
	}
	return idx, nil
}

// Emit records evt. Events without an attribute payload are skipped.
func (i *Indexer) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	raw := payload.Event().Clone()
	attrs := raw.Attributes

	i.mu.Lock()
	defer i.mu.Unlock()
	row := Activity{
		ID:         uuid.New(),
		Sequence:   i.seq + 1,
		Type:       raw.Type,
		Pool:       attrs["pool"],
		Attributes: attrs,
		CreatedAt:  i.nowFn().UTC(),
	}
	if err := i.db.Create(&row).Error; err != nil {
		i.logger.Error("index activity", slog.String("type", raw.Type), slog.String("error", err.Error()))
		return
	}
	i.seq = row.Sequence
}

// ListByPool returns the activity of a pool in commit order, starting after
// the given sequence number.
func (i *Indexer) ListByPool(ctx context.Context, pool string, after uint64, limit int) ([]Activity, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	var rows []Activity
	err := i.db.WithContext(ctx).
		Where("pool = ? AND sequence > ?", pool, after).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Close releases the underlying connection pool.
func (i *Indexer) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
