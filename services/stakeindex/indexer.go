package stakeindex

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"fplstake/core/events"
	"fplstake/core/types"
)

// Indexer subscribes to engine emissions and mirrors them into a relational
// store so explorers and reporting can query history without touching the
// node's key-value state.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the sqlite-compatible DSN and migrates the schema.
func Open(dsn string, logger *slog.Logger) (*Indexer, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("stakeindex: dsn must be configured")
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("stakeindex: open database: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("stakeindex: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for the read API and tests.
func (i *Indexer) DB() *gorm.DB {
	return i.db
}

// Close releases the database connection.
func (i *Indexer) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit satisfies events.Emitter. Indexing failures are logged rather than
// propagated: the engine's state transition has already committed.
func (i *Indexer) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	switch payload.Type {
	case TypeStakeCreated:
		if err := i.recordCreated(payload); err != nil {
			i.logger.Error("index stake created", "error", err)
		}
	case TypeStakeClosed:
		if err := i.recordClosed(payload); err != nil {
			i.logger.Error("index stake closed", "error", err)
		}
	}
}

func attrUint(attrs map[string]string, key string) uint64 {
	value, err := strconv.ParseUint(attrs[key], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func attrInt(attrs map[string]string, key string) int64 {
	value, err := strconv.ParseInt(attrs[key], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func (i *Indexer) recordCreated(payload *types.Event) error {
	attrs := payload.Attributes
	row := StakeEvent{
		ID:           uuid.New(),
		Type:         payload.Type,
		Owner:        attrs["owner"],
		Sequence:     attrUint(attrs, "sequence"),
		Amount:       attrs["amount"],
		LockDuration: attrUint(attrs, "lockDuration"),
		OccurredAt:   attrInt(attrs, "startTime"),
	}
	return i.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		position := Position{
			ID:           uuid.New(),
			Owner:        row.Owner,
			Sequence:     row.Sequence,
			Amount:       row.Amount,
			LockDuration: row.LockDuration,
			StartTime:    row.OccurredAt,
			Active:       true,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "sequence"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "lock_duration", "start_time", "active"}),
		}).Create(&position).Error
	})
}

func (i *Indexer) recordClosed(payload *types.Event) error {
	attrs := payload.Attributes
	row := StakeEvent{
		ID:           uuid.New(),
		Type:         payload.Type,
		Owner:        attrs["owner"],
		Sequence:     attrUint(attrs, "sequence"),
		Amount:       attrs["amount"],
		LockDuration: attrUint(attrs, "lockDuration"),
		Returned:     attrs["returned"],
		Fee:          attrs["fee"],
		OccurredAt:   attrInt(attrs, "closedAt"),
	}
	return i.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&Position{}).
			Where("owner = ? AND sequence = ?", row.Owner, row.Sequence).
			Updates(map[string]interface{}{
				"active":    false,
				"returned":  row.Returned,
				"fee":       row.Fee,
				"closed_at": row.OccurredAt,
			}).Error
	})
}
