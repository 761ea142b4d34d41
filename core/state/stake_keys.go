package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"fplstake/native/stake"
)

var (
	stakeRecordPrefix     = []byte("stake/record/")
	stakeOwnerIndexPrefix = []byte("stake/owner-index/")
	stakeSequenceKey      = []byte("stake/sequence")
	stakeConfigKey        = []byte("stake/config")
	stakeTreasuryKey      = []byte("stake/treasury")

	stakeVaultLabel    = []byte("stake-vault")
	treasuryVaultLabel = []byte("treasury-vault")
)

// moduleVaultAddress derives the custody address for a fixed label. No key
// pair exists for the result; only engine transitions may debit it, and they
// re-derive the address through this same function when authorising.
func moduleVaultAddress(label []byte) [20]byte {
	hash := ethcrypto.Keccak256(label)
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// StakeVaultAddress returns the derived address of the stake escrow vault.
func (m *Manager) StakeVaultAddress() [20]byte {
	return moduleVaultAddress(stakeVaultLabel)
}

// TreasuryVaultAddress returns the derived address of the treasury vault.
func (m *Manager) TreasuryVaultAddress() [20]byte {
	return moduleVaultAddress(treasuryVaultLabel)
}

func stakeRecordKey(owner [20]byte, sequence uint64) []byte {
	buf := make([]byte, len(stakeRecordPrefix)+len(owner)+8)
	copy(buf, stakeRecordPrefix)
	copy(buf[len(stakeRecordPrefix):], owner[:])
	binary.BigEndian.PutUint64(buf[len(stakeRecordPrefix)+len(owner):], sequence)
	return ethcrypto.Keccak256(buf)
}

func stakeOwnerIndexKey(owner [20]byte) []byte {
	buf := make([]byte, len(stakeOwnerIndexPrefix)+len(owner))
	copy(buf, stakeOwnerIndexPrefix)
	copy(buf[len(stakeOwnerIndexPrefix):], owner[:])
	return buf
}

type storedStake struct {
	Owner         [20]byte
	Amount        *big.Int
	StartTime     uint64
	LockDuration  uint64
	Profile       [20]byte
	Active        bool
	LastClaimTime uint64
	Sequence      uint64
}

func newStoredStake(s *stake.Stake) *storedStake {
	amount := big.NewInt(0)
	if s.Amount != nil {
		amount = new(big.Int).Set(s.Amount)
	}
	start := s.StartTime
	if start < 0 {
		start = 0
	}
	claim := s.LastClaimTime
	if claim < 0 {
		claim = 0
	}
	return &storedStake{
		Owner:         s.Owner,
		Amount:        amount,
		StartTime:     uint64(start),
		LockDuration:  s.LockDuration,
		Profile:       s.Profile,
		Active:        s.Active,
		LastClaimTime: uint64(claim),
		Sequence:      s.Sequence,
	}
}

func (s *storedStake) toStake() *stake.Stake {
	record := &stake.Stake{
		Owner:         s.Owner,
		Amount:        big.NewInt(0),
		StartTime:     int64(s.StartTime),
		LockDuration:  s.LockDuration,
		Profile:       s.Profile,
		Active:        s.Active,
		LastClaimTime: int64(s.LastClaimTime),
		Sequence:      s.Sequence,
	}
	if s.Amount != nil {
		record.Amount = new(big.Int).Set(s.Amount)
	}
	return record
}

// StakePut persists the stake record under its (owner, sequence) key and
// records the sequence in the owner's index so the ledger can be listed.
func (m *Manager) StakePut(s *stake.Stake) error {
	if s == nil {
		return fmt.Errorf("stake: nil record")
	}
	if s.Amount == nil || s.Amount.Sign() <= 0 {
		return fmt.Errorf("stake: amount must be positive")
	}
	encoded, err := rlp.EncodeToBytes(newStoredStake(s))
	if err != nil {
		return err
	}
	if err := m.db.Put(stakeRecordKey(s.Owner, s.Sequence), encoded); err != nil {
		return err
	}
	return m.appendOwnerIndex(s.Owner, s.Sequence)
}

func (m *Manager) appendOwnerIndex(owner [20]byte, sequence uint64) error {
	key := stakeOwnerIndexKey(owner)
	var sequences []uint64
	if _, err := m.KVGet(key, &sequences); err != nil {
		return err
	}
	for _, existing := range sequences {
		if existing == sequence {
			return nil
		}
	}
	sequences = append(sequences, sequence)
	return m.KVPut(key, sequences)
}

// StakeGet loads the stake record addressed by (owner, sequence).
func (m *Manager) StakeGet(owner [20]byte, sequence uint64) (*stake.Stake, bool) {
	data, ok, err := m.readRaw(stakeRecordKey(owner, sequence))
	if err != nil || !ok {
		return nil, false
	}
	stored := new(storedStake)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return stored.toStake(), true
}

// StakesByOwner returns every stake ever recorded for the owner, open and
// closed alike, in creation order.
func (m *Manager) StakesByOwner(owner [20]byte) ([]*stake.Stake, error) {
	var sequences []uint64
	if _, err := m.KVGet(stakeOwnerIndexKey(owner), &sequences); err != nil {
		return nil, err
	}
	records := make([]*stake.Stake, 0, len(sequences))
	for _, sequence := range sequences {
		record, ok := m.StakeGet(owner, sequence)
		if !ok {
			return nil, fmt.Errorf("stake: indexed record %d missing for owner", sequence)
		}
		records = append(records, record)
	}
	return records, nil
}

// StakeSequence returns the current value of the global sequence counter.
func (m *Manager) StakeSequence() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(stakeSequenceKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// IncrementStakeSequence advances the counter by one and returns the new
// value. Serialisation is supplied by the node's state mutex.
func (m *Manager) IncrementStakeSequence() (uint64, error) {
	count, err := m.StakeSequence()
	if err != nil {
		return 0, err
	}
	next := count + 1
	if err := m.KVPut(stakeSequenceKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

type storedConfig struct {
	MinStakeAmount            *big.Int
	MaxStakeAmount            *big.Int
	EarlyWithdrawalFeePercent uint8
	LockOptions               []uint64
}

// StakeConfigPut validates and replaces the whole validation-rules record.
func (m *Manager) StakeConfigPut(cfg *stake.Config) error {
	sanitized, err := stake.SanitizeConfig(cfg)
	if err != nil {
		return err
	}
	return m.KVPut(stakeConfigKey, &storedConfig{
		MinStakeAmount:            sanitized.MinStakeAmount,
		MaxStakeAmount:            sanitized.MaxStakeAmount,
		EarlyWithdrawalFeePercent: sanitized.EarlyWithdrawalFeePercent,
		LockOptions:               sanitized.LockOptions,
	})
}

// StakeConfigGet loads the validation rules if configured.
func (m *Manager) StakeConfigGet() (*stake.Config, bool) {
	stored := new(storedConfig)
	ok, err := m.KVGet(stakeConfigKey, stored)
	if err != nil || !ok {
		return nil, false
	}
	return &stake.Config{
		MinStakeAmount:            stored.MinStakeAmount,
		MaxStakeAmount:            stored.MaxStakeAmount,
		EarlyWithdrawalFeePercent: stored.EarlyWithdrawalFeePercent,
		LockOptions:               stored.LockOptions,
	}, true
}

type storedTreasury struct {
	Admin              [20]byte
	TotalFees          *big.Int
	ProtocolFeePercent uint8
	ReservePercentage  uint8
}

// TreasuryPut persists the treasury record.
func (m *Manager) TreasuryPut(t *stake.Treasury) error {
	if t == nil {
		return fmt.Errorf("stake: nil treasury")
	}
	fees := big.NewInt(0)
	if t.TotalFees != nil {
		if t.TotalFees.Sign() < 0 {
			return fmt.Errorf("stake: negative treasury total")
		}
		fees = new(big.Int).Set(t.TotalFees)
	}
	return m.KVPut(stakeTreasuryKey, &storedTreasury{
		Admin:              t.Admin,
		TotalFees:          fees,
		ProtocolFeePercent: t.ProtocolFeePercent,
		ReservePercentage:  t.ReservePercentage,
	})
}

// TreasuryGet loads the treasury record if present.
func (m *Manager) TreasuryGet() (*stake.Treasury, bool) {
	stored := new(storedTreasury)
	ok, err := m.KVGet(stakeTreasuryKey, stored)
	if err != nil || !ok {
		return nil, false
	}
	fees := big.NewInt(0)
	if stored.TotalFees != nil {
		fees = new(big.Int).Set(stored.TotalFees)
	}
	return &stake.Treasury{
		Admin:              stored.Admin,
		TotalFees:          fees,
		ProtocolFeePercent: stored.ProtocolFeePercent,
		ReservePercentage:  stored.ReservePercentage,
	}, true
}
