package state

import (
	"bytes"
	"math/big"
	"testing"

	"fplstake/native/stake"
)

func testStakeAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestVaultAddressesAreStableAndDistinct(t *testing.T) {
	mgr := newTestManager(t)

	stakeVault := mgr.StakeVaultAddress()
	if stakeVault != mgr.StakeVaultAddress() {
		t.Fatalf("stake vault derivation not deterministic")
	}
	if stakeVault == mgr.TreasuryVaultAddress() {
		t.Fatalf("vault labels collided")
	}
	if stakeVault == ([20]byte{}) {
		t.Fatalf("derived zero vault address")
	}
}

func TestStakeRecordRoundtrip(t *testing.T) {
	mgr := newTestManager(t)
	owner := testStakeAddress(0x01)

	record := &stake.Stake{
		Owner:         owner,
		Amount:        big.NewInt(500_000_000),
		StartTime:     1_700_000_000,
		LockDuration:  86_400,
		Profile:       owner,
		Active:        true,
		LastClaimTime: 1_700_000_000,
		Sequence:      3,
	}
	if err := mgr.StakePut(record); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok := mgr.StakeGet(owner, 3)
	if !ok {
		t.Fatalf("record missing")
	}
	if loaded.Amount.Cmp(record.Amount) != 0 || loaded.StartTime != record.StartTime ||
		loaded.LockDuration != record.LockDuration || !loaded.Active || loaded.Sequence != 3 {
		t.Fatalf("roundtrip mismatch: %+v", loaded)
	}

	if _, ok := mgr.StakeGet(owner, 4); ok {
		t.Fatalf("unexpected record at unused sequence")
	}
	if _, ok := mgr.StakeGet(testStakeAddress(0x02), 3); ok {
		t.Fatalf("record visible under wrong owner")
	}
}

func TestStakePutValidatesAmount(t *testing.T) {
	mgr := newTestManager(t)
	record := &stake.Stake{Owner: testStakeAddress(0x03), Amount: big.NewInt(0)}
	if err := mgr.StakePut(record); err == nil {
		t.Fatalf("expected zero amount rejection")
	}
	if err := mgr.StakePut(nil); err == nil {
		t.Fatalf("expected nil record rejection")
	}
}

func TestStakesByOwnerPreservesOrder(t *testing.T) {
	mgr := newTestManager(t)
	owner := testStakeAddress(0x04)

	for seq := uint64(0); seq < 3; seq++ {
		record := &stake.Stake{
			Owner:        owner,
			Amount:       big.NewInt(int64(1_000_000 * (seq + 1))),
			StartTime:    1_700_000_000 + int64(seq),
			LockDuration: 86_400,
			Active:       true,
			Sequence:     seq,
		}
		if err := mgr.StakePut(record); err != nil {
			t.Fatalf("put %d: %v", seq, err)
		}
	}

	// Rewriting an existing record must not duplicate its index entry.
	closed, _ := mgr.StakeGet(owner, 1)
	closed.Active = false
	if err := mgr.StakePut(closed); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	records, err := mgr.StakesByOwner(owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, record := range records {
		if record.Sequence != uint64(i) {
			t.Fatalf("record %d has sequence %d", i, record.Sequence)
		}
	}
	if records[1].Active {
		t.Fatalf("rewrite not visible in listing")
	}

	empty, err := mgr.StakesByOwner(testStakeAddress(0x05))
	if err != nil {
		t.Fatalf("list empty owner: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty listing")
	}
}

func TestStakeSequenceCounter(t *testing.T) {
	mgr := newTestManager(t)

	count, err := mgr.StakeSequence()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh counter = %d", count)
	}
	for want := uint64(1); want <= 3; want++ {
		next, err := mgr.IncrementStakeSequence()
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if next != want {
			t.Fatalf("increment returned %d, want %d", next, want)
		}
	}
	count, _ = mgr.StakeSequence()
	if count != 3 {
		t.Fatalf("counter = %d after three increments", count)
	}
}

func TestStakeConfigRoundtrip(t *testing.T) {
	mgr := newTestManager(t)

	if _, ok := mgr.StakeConfigGet(); ok {
		t.Fatalf("config reported present on fresh store")
	}

	cfg := &stake.Config{
		MinStakeAmount:            big.NewInt(1_000_000),
		MaxStakeAmount:            big.NewInt(1_000_000_000),
		EarlyWithdrawalFeePercent: 10,
		LockOptions:               []uint64{86_400, 604_800},
	}
	if err := mgr.StakeConfigPut(cfg); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok := mgr.StakeConfigGet()
	if !ok {
		t.Fatalf("config missing")
	}
	if loaded.MinStakeAmount.Cmp(cfg.MinStakeAmount) != 0 ||
		loaded.MaxStakeAmount.Cmp(cfg.MaxStakeAmount) != 0 ||
		loaded.EarlyWithdrawalFeePercent != 10 ||
		len(loaded.LockOptions) != 2 {
		t.Fatalf("roundtrip mismatch: %+v", loaded)
	}

	bad := cfg.Clone()
	bad.EarlyWithdrawalFeePercent = 101
	if err := mgr.StakeConfigPut(bad); err == nil {
		t.Fatalf("expected sanitize failure")
	}
}

func TestTreasuryRoundtrip(t *testing.T) {
	mgr := newTestManager(t)

	if _, ok := mgr.TreasuryGet(); ok {
		t.Fatalf("treasury reported present on fresh store")
	}

	record := &stake.Treasury{
		Admin:              testStakeAddress(0x06),
		TotalFees:          big.NewInt(4_000_000),
		ProtocolFeePercent: 60,
		ReservePercentage:  40,
	}
	if err := mgr.TreasuryPut(record); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok := mgr.TreasuryGet()
	if !ok {
		t.Fatalf("treasury missing")
	}
	if loaded.TotalFees.Cmp(record.TotalFees) != 0 || loaded.Admin != record.Admin ||
		loaded.ProtocolFeePercent != 60 || loaded.ReservePercentage != 40 {
		t.Fatalf("roundtrip mismatch: %+v", loaded)
	}

	negative := &stake.Treasury{TotalFees: big.NewInt(-1)}
	if err := mgr.TreasuryPut(negative); err == nil {
		t.Fatalf("expected negative total rejection")
	}
}
