package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nftstake/core/types"
)

// Supported journal drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Entry is one committed event persisted for audit and history queries.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence   uint64    `gorm:"uniqueIndex;not null" json:"sequence"`
	Type       string    `gorm:"index;not null" json:"type"`
	Account    string    `gorm:"index" json:"account,omitempty"`
	Attributes string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName pins the table name across drivers.
func (Entry) TableName() string { return "nftstake_events" }

// Decoded returns the event attributes.
func (e Entry) Decoded() (map[string]string, error) {
	attrs := make(map[string]string)
	if strings.TrimSpace(e.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("journal: decode attributes: %w", err)
	}
	return attrs, nil
}

// Filter narrows a history query. Zero values match everything.
type Filter struct {
	Account string
	Type    string
	Limit   int
	Offset  int
}

const defaultLimit = 100

// Journal appends committed events to a SQL database.
type Journal struct {
	db  *gorm.DB
	mu  sync.Mutex
	seq uint64
	now func() time.Time
}

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: database handle required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	var last uint64
	if err := db.Model(&Entry{}).Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("journal: load sequence: %w", err)
	}
	return &Journal{db: db, seq: last, now: time.Now}, nil
}

func accountOf(attrs map[string]string) string {
	for _, key := range []string{"account", "owner", "to", "admin"} {
		if v := strings.TrimSpace(attrs[key]); v != "" {
			return v
		}
	}
	return ""
}

// Append persists evts in one transaction and returns the stored entries.
func (j *Journal) Append(ctx context.Context, evts []*types.Event) ([]Entry, error) {
	if j == nil || len(evts) == 0 {
		return nil, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := make([]Entry, 0, len(evts))
	seq := j.seq
	createdAt := j.now().UTC()
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		encoded, err := json.Marshal(evt.Attributes)
		if err != nil {
			return nil, fmt.Errorf("journal: encode attributes: %w", err)
		}
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("journal: entry id: %w", err)
		}
		seq++
		entries = append(entries, Entry{
			ID:         id,
			Sequence:   seq,
			Type:       evt.Type,
			Account:    accountOf(evt.Attributes),
			Attributes: string(encoded),
			CreatedAt:  createdAt,
		})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entries).Error
	})
	if err != nil {
		return nil, fmt.Errorf("journal: append: %w", err)
	}
	j.seq = seq
	return entries, nil
}

// Query returns entries matching filter in sequence order.
func (j *Journal) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if j == nil {
		return nil, errors.New("journal: not configured")
	}
	query := j.db.WithContext(ctx).Model(&Entry{}).Order("sequence ASC")
	if account := strings.TrimSpace(filter.Account); account != "" {
		query = query.Where("account = ?", account)
	}
	if eventType := strings.TrimSpace(filter.Type); eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}
	query = query.Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	return entries, nil
}

// LastSequence returns the sequence number of the most recent entry.
func (j *Journal) LastSequence() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
