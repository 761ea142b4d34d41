package stake

import (
	"fmt"
	"math/big"
)

// MaxLockDuration bounds the configurable lock options, in seconds. The cap
// keeps StartTime plus the lock inside int64 range so maturity comparisons
// never wrap.
const MaxLockDuration uint64 = 100 * 365 * 24 * 60 * 60

// Config carries the admin-set validation rules applied to every new stake.
// The record is replaced wholesale by administrator writes and read by each
// open transition; the engine never mutates it.
type Config struct {
	MinStakeAmount            *big.Int
	MaxStakeAmount            *big.Int
	EarlyWithdrawalFeePercent uint8
	LockOptions               []uint64
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := &Config{
		EarlyWithdrawalFeePercent: c.EarlyWithdrawalFeePercent,
		MinStakeAmount:            big.NewInt(0),
		MaxStakeAmount:            big.NewInt(0),
	}
	if c.MinStakeAmount != nil {
		clone.MinStakeAmount = new(big.Int).Set(c.MinStakeAmount)
	}
	if c.MaxStakeAmount != nil {
		clone.MaxStakeAmount = new(big.Int).Set(c.MaxStakeAmount)
	}
	clone.LockOptions = append([]uint64(nil), c.LockOptions...)
	return clone
}

// AllowsLock reports whether the duration is one of the configured options.
func (c *Config) AllowsLock(duration uint64) bool {
	if c == nil {
		return false
	}
	for _, opt := range c.LockOptions {
		if opt == duration {
			return true
		}
	}
	return false
}

// SanitizeConfig validates the supplied rules and returns a normalised clone.
func SanitizeConfig(c *Config) (*Config, error) {
	if c == nil {
		return nil, fmt.Errorf("stake: nil config")
	}
	clone := c.Clone()
	if clone.MinStakeAmount.Sign() <= 0 {
		return nil, fmt.Errorf("stake: minimum stake amount must be positive")
	}
	if clone.MaxStakeAmount.Cmp(clone.MinStakeAmount) < 0 {
		return nil, fmt.Errorf("stake: maximum stake amount below minimum")
	}
	if clone.EarlyWithdrawalFeePercent > 100 {
		return nil, fmt.Errorf("stake: early withdrawal fee percent out of range: %d", clone.EarlyWithdrawalFeePercent)
	}
	if len(clone.LockOptions) == 0 {
		return nil, fmt.Errorf("stake: at least one lock option required")
	}
	for _, opt := range clone.LockOptions {
		if opt == 0 {
			return nil, fmt.Errorf("stake: lock options must be positive")
		}
		if opt > MaxLockDuration {
			return nil, fmt.Errorf("stake: lock option %d exceeds maximum of %d seconds", opt, MaxLockDuration)
		}
	}
	return clone, nil
}

// Stake is a single custody record in the append-only ledger, addressed by
// (owner, sequence). Active flips true to false exactly once; records are
// never deleted so downstream reporting keeps the full history.
type Stake struct {
	Owner         [20]byte
	Amount        *big.Int
	StartTime     int64
	LockDuration  uint64
	Profile       [20]byte
	Active        bool
	LastClaimTime int64
	Sequence      uint64
}

// Clone returns a deep copy of the stake record.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Amount != nil {
		clone.Amount = new(big.Int).Set(s.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// EndTime returns the timestamp after which closure carries no fee.
func (s *Stake) EndTime() int64 {
	if s == nil {
		return 0
	}
	return s.StartTime + int64(s.LockDuration)
}

// Treasury accumulates collected early-withdrawal fees. TotalFees mirrors the
// treasury vault balance: both are updated inside the same close transition.
type Treasury struct {
	Admin              [20]byte
	TotalFees          *big.Int
	ProtocolFeePercent uint8
	ReservePercentage  uint8
}

// Clone returns a deep copy of the treasury record.
func (t *Treasury) Clone() *Treasury {
	if t == nil {
		return nil
	}
	clone := *t
	if t.TotalFees != nil {
		clone.TotalFees = new(big.Int).Set(t.TotalFees)
	} else {
		clone.TotalFees = big.NewInt(0)
	}
	return &clone
}

// UnstakeReceipt reports the settlement of a close transition. Returned plus
// Fee always equals the original staked amount.
type UnstakeReceipt struct {
	Stake    *Stake
	Returned *big.Int
	Fee      *big.Int
}
