package stakeindex

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event type labels mirrored from the engine's emissions.
const (
	TypeStakeCreated = "stake.created"
	TypeStakeClosed  = "stake.closed"
)

// StakeEvent is the append-only audit row written for every engine emission.
type StakeEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type         string    `gorm:"size:64;index"`
	Owner        string    `gorm:"size:90;index"`
	Sequence     uint64    `gorm:"index"`
	Amount       string    `gorm:"size:80"`
	LockDuration uint64
	Returned     string `gorm:"size:80"`
	Fee          string `gorm:"size:80"`
	OccurredAt   int64  `gorm:"index"`
	CreatedAt    time.Time
}

// Position is the materialised view of a single stake, kept current as
// created/closed events arrive.
type Position struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Owner        string    `gorm:"size:90;index:idx_positions_owner_seq,unique"`
	Sequence     uint64    `gorm:"index:idx_positions_owner_seq,unique"`
	Amount       string    `gorm:"size:80"`
	LockDuration uint64
	StartTime    int64
	Active       bool `gorm:"index"`
	Returned     string
	Fee          string
	ClosedAt     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AutoMigrate performs all schema migrations for the indexer.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&StakeEvent{},
		&Position{},
	)
}
