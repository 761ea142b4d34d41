package stake

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"fplstake/core/events"
	"fplstake/core/types"
)

type mockState struct {
	config   *Config
	stakes   map[[28]byte]*Stake
	sequence uint64
	accounts map[[20]byte]*types.Account
	treasury *Treasury
	profiles map[[20]byte][20]byte

	stakeVault    [20]byte
	treasuryVault [20]byte
}

func newMockState() *mockState {
	return &mockState{
		stakes:        make(map[[28]byte]*Stake),
		accounts:      make(map[[20]byte]*types.Account),
		profiles:      make(map[[20]byte][20]byte),
		stakeVault:    newTestAddress(0xAA),
		treasuryVault: newTestAddress(0xBB),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func stakeKey(owner [20]byte, sequence uint64) [28]byte {
	var key [28]byte
	copy(key[:20], owner[:])
	for i := 0; i < 8; i++ {
		key[27-i] = byte(sequence >> (8 * i))
	}
	return key
}

func (m *mockState) StakeConfigGet() (*Config, bool) {
	if m.config == nil {
		return nil, false
	}
	return m.config.Clone(), true
}

func (m *mockState) StakeGet(owner [20]byte, sequence uint64) (*Stake, bool) {
	record, ok := m.stakes[stakeKey(owner, sequence)]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *mockState) StakePut(record *Stake) error {
	if record == nil {
		return errors.New("nil stake")
	}
	m.stakes[stakeKey(record.Owner, record.Sequence)] = record.Clone()
	return nil
}

func (m *mockState) StakeSequence() (uint64, error) {
	return m.sequence, nil
}

func (m *mockState) IncrementStakeSequence() (uint64, error) {
	m.sequence++
	return m.sequence, nil
}

func (m *mockState) StakeVaultAddress() [20]byte    { return m.stakeVault }
func (m *mockState) TreasuryVaultAddress() [20]byte { return m.treasuryVault }

func (m *mockState) TreasuryGet() (*Treasury, bool) {
	if m.treasury == nil {
		return nil, false
	}
	return m.treasury.Clone(), true
}

func (m *mockState) TreasuryPut(t *Treasury) error {
	m.treasury = t.Clone()
	return nil
}

func (m *mockState) ResolveProfile(owner [20]byte) ([20]byte, bool, error) {
	profile, ok := m.profiles[owner]
	return profile, ok, nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, acc *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = acc.Clone()
	return nil
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok || acc.Balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

func (m *mockState) setBalance(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

type recordingEmitter struct {
	events []*types.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	r.events = append(r.events, carrier.Event())
}

func testConfig() *Config {
	return &Config{
		MinStakeAmount:            big.NewInt(1_000_000),
		MaxStakeAmount:            big.NewInt(1_000_000_000),
		EarlyWithdrawalFeePercent: 10,
		LockOptions:               []uint64{86_400, 604_800},
	}
}

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine
}

func registerOwner(state *mockState, owner [20]byte) {
	state.profiles[owner] = owner
}

func TestCreateStakeEscrowsPrincipal(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x01)
	registerOwner(state, owner)
	state.setBalance(owner, 600_000_000)
	engine := newTestEngine(state)

	record, err := engine.CreateStake(owner, big.NewInt(500_000_000), 86_400)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.Sequence != 0 {
		t.Fatalf("expected first sequence 0, got %d", record.Sequence)
	}
	if !record.Active {
		t.Fatalf("expected active record")
	}
	if record.StartTime != 1_700_000_000 || record.LastClaimTime != 1_700_000_000 {
		t.Fatalf("unexpected timestamps: %d / %d", record.StartTime, record.LastClaimTime)
	}
	if got := state.balance(owner); got.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("owner balance = %s, want 100000000", got)
	}
	if got := state.balance(state.stakeVault); got.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("vault balance = %s, want 500000000", got)
	}
}

func TestCreateStakeValidations(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x02)
	registerOwner(state, owner)
	state.setBalance(owner, 2_000_000_000)
	engine := newTestEngine(state)

	cases := []struct {
		name    string
		amount  *big.Int
		lock    uint64
		wantErr error
	}{
		{"below minimum", big.NewInt(999_999), 86_400, ErrInvalidStakeAmount},
		{"above maximum", big.NewInt(1_000_000_001), 86_400, ErrInvalidStakeAmount},
		{"zero amount", big.NewInt(0), 86_400, ErrInvalidStakeAmount},
		{"negative amount", big.NewInt(-5), 86_400, ErrInvalidStakeAmount},
		{"unlisted lock", big.NewInt(5_000_000), 3_600, ErrInvalidLockPeriod},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CreateStake(owner, tc.amount, tc.lock)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}

	// Rejections must leave no trace: no balance movement, no counter advance.
	if got := state.balance(owner); got.Cmp(big.NewInt(2_000_000_000)) != 0 {
		t.Fatalf("owner balance moved on rejected create: %s", got)
	}
	if state.sequence != 0 {
		t.Fatalf("sequence advanced on rejected create: %d", state.sequence)
	}
	if len(state.stakes) != 0 {
		t.Fatalf("record written on rejected create")
	}
}

func TestCreateStakeBoundaryAmounts(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x03)
	registerOwner(state, owner)
	state.setBalance(owner, 2_000_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(1_000_000), 86_400); err != nil {
		t.Fatalf("minimum amount rejected: %v", err)
	}
	if _, err := engine.CreateStake(owner, big.NewInt(1_000_000_000), 86_400); err != nil {
		t.Fatalf("maximum amount rejected: %v", err)
	}
}

func TestCreateStakeRequiresProfile(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x04)
	state.setBalance(owner, 10_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(5_000_000), 86_400); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("got %v, want ErrProfileNotFound", err)
	}
}

func TestCreateStakeRequiresConfig(t *testing.T) {
	state := newMockState()
	owner := newTestAddress(0x05)
	registerOwner(state, owner)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(5_000_000), 86_400); !errors.Is(err, ErrConfigNotSet) {
		t.Fatalf("got %v, want ErrConfigNotSet", err)
	}
}

func TestCreateStakeInsufficientFunds(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x06)
	registerOwner(state, owner)
	state.setBalance(owner, 1_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(5_000_000), 86_400); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if state.sequence != 0 {
		t.Fatalf("sequence advanced on failed create")
	}
}

func TestCreateStakeSequencesAreDense(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x07)
	registerOwner(state, owner)
	state.setBalance(owner, 100_000_000)
	engine := newTestEngine(state)

	for want := uint64(0); want < 4; want++ {
		record, err := engine.CreateStake(owner, big.NewInt(2_000_000), 86_400)
		if err != nil {
			t.Fatalf("create %d: %v", want, err)
		}
		if record.Sequence != want {
			t.Fatalf("sequence = %d, want %d", record.Sequence, want)
		}
	}
	if state.sequence != 4 {
		t.Fatalf("counter = %d, want 4", state.sequence)
	}
}

func TestUnstakeEarlyChargesFee(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x10)
	registerOwner(state, owner)
	state.setBalance(owner, 500_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(500_000_000), 86_400); err != nil {
		t.Fatalf("create: %v", err)
	}

	// One hour into a one-day lock.
	engine.SetNowFunc(func() int64 { return 1_700_003_600 })
	receipt, err := engine.Unstake(owner, 0, state.stakeVault)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if receipt.Fee.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("fee = %s, want 50000000", receipt.Fee)
	}
	if receipt.Returned.Cmp(big.NewInt(450_000_000)) != 0 {
		t.Fatalf("returned = %s, want 450000000", receipt.Returned)
	}
	if got := state.balance(owner); got.Cmp(big.NewInt(450_000_000)) != 0 {
		t.Fatalf("owner balance = %s, want 450000000", got)
	}
	if got := state.balance(state.treasuryVault); got.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("treasury vault = %s, want 50000000", got)
	}
	if got := state.balance(state.stakeVault); got.Sign() != 0 {
		t.Fatalf("stake vault not emptied: %s", got)
	}
	if state.treasury == nil || state.treasury.TotalFees.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("treasury total not recorded")
	}
	if receipt.Stake.Active {
		t.Fatalf("record still active after close")
	}
}

func TestUnstakeAfterLockIsFree(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x11)
	registerOwner(state, owner)
	state.setBalance(owner, 500_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(500_000_000), 86_400); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Exactly at lock expiry the fee no longer applies.
	engine.SetNowFunc(func() int64 { return 1_700_000_000 + 86_400 })
	receipt, err := engine.Unstake(owner, 0, state.stakeVault)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if receipt.Fee.Sign() != 0 {
		t.Fatalf("fee = %s, want 0", receipt.Fee)
	}
	if got := state.balance(owner); got.Cmp(big.NewInt(500_000_000)) != 0 {
		t.Fatalf("owner balance = %s, want full principal", got)
	}
	if state.treasury != nil {
		t.Fatalf("treasury written without a fee")
	}
}

func TestUnstakeFeeRoundsDown(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	state.config.MinStakeAmount = big.NewInt(1)
	owner := newTestAddress(0x12)
	registerOwner(state, owner)
	state.setBalance(owner, 15)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(15), 86_400); err != nil {
		t.Fatalf("create: %v", err)
	}
	receipt, err := engine.Unstake(owner, 0, state.stakeVault)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	// 10% of 15 floors to 1; payout plus fee still equals the principal.
	if receipt.Fee.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("fee = %s, want 1", receipt.Fee)
	}
	sum := new(big.Int).Add(receipt.Returned, receipt.Fee)
	if sum.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("returned+fee = %s, want 15", sum)
	}
}

func TestUnstakeIsSingleUse(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x13)
	registerOwner(state, owner)
	state.setBalance(owner, 10_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(10_000_000), 86_400); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Unstake(owner, 0, state.stakeVault); err != nil {
		t.Fatalf("first unstake: %v", err)
	}
	if _, err := engine.Unstake(owner, 0, state.stakeVault); !errors.Is(err, ErrStakeNotActive) {
		t.Fatalf("got %v, want ErrStakeNotActive", err)
	}
}

func TestUnstakeRejectsWrongCaller(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x14)
	intruder := newTestAddress(0x15)
	registerOwner(state, owner)
	state.setBalance(owner, 10_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(10_000_000), 86_400); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Records are addressed by (owner, sequence) so a stranger's lookup misses.
	if _, err := engine.Unstake(intruder, 0, state.stakeVault); !errors.Is(err, ErrStakeNotFound) {
		t.Fatalf("got %v, want ErrStakeNotFound", err)
	}
}

func TestUnstakeRejectsSubstituteVault(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x16)
	registerOwner(state, owner)
	state.setBalance(owner, 10_000_000)
	engine := newTestEngine(state)

	if _, err := engine.CreateStake(owner, big.NewInt(10_000_000), 86_400); err != nil {
		t.Fatalf("create: %v", err)
	}
	wrong := newTestAddress(0xCC)
	if _, err := engine.Unstake(owner, 0, wrong); !errors.Is(err, ErrUnauthorizedAccess) {
		t.Fatalf("got %v, want ErrUnauthorizedAccess", err)
	}
	if got := state.balance(state.stakeVault); got.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("vault drained on rejected unstake: %s", got)
	}
}

func TestUnstakeUnknownSequence(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x17)
	registerOwner(state, owner)
	engine := newTestEngine(state)

	if _, err := engine.Unstake(owner, 99, state.stakeVault); !errors.Is(err, ErrStakeNotFound) {
		t.Fatalf("got %v, want ErrStakeNotFound", err)
	}
}

func TestTreasuryAccumulatesAcrossCloses(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x18)
	registerOwner(state, owner)
	state.setBalance(owner, 40_000_000)
	engine := newTestEngine(state)

	for i := 0; i < 2; i++ {
		if _, err := engine.CreateStake(owner, big.NewInt(20_000_000), 86_400); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	for seq := uint64(0); seq < 2; seq++ {
		if _, err := engine.Unstake(owner, seq, state.stakeVault); err != nil {
			t.Fatalf("unstake %d: %v", seq, err)
		}
	}
	want := big.NewInt(4_000_000)
	if state.treasury.TotalFees.Cmp(want) != 0 {
		t.Fatalf("total fees = %s, want %s", state.treasury.TotalFees, want)
	}
	// The running total must stay in lockstep with the vault balance.
	if got := state.balance(state.treasuryVault); got.Cmp(want) != 0 {
		t.Fatalf("treasury vault = %s, want %s", got, want)
	}
}

func TestConservationAcrossLifecycle(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x19)
	registerOwner(state, owner)
	state.setBalance(owner, 800_000_000)
	engine := newTestEngine(state)

	total := func() *big.Int {
		sum := new(big.Int).Set(state.balance(owner))
		sum.Add(sum, state.balance(state.stakeVault))
		sum.Add(sum, state.balance(state.treasuryVault))
		return sum
	}
	before := total()

	if _, err := engine.CreateStake(owner, big.NewInt(300_000_000), 604_800); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := total(); got.Cmp(before) != 0 {
		t.Fatalf("supply changed on create: %s != %s", got, before)
	}
	if _, err := engine.Unstake(owner, 0, state.stakeVault); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := total(); got.Cmp(before) != 0 {
		t.Fatalf("supply changed on close: %s != %s", got, before)
	}
}

func TestEngineEmitsLifecycleEvents(t *testing.T) {
	state := newMockState()
	state.config = testConfig()
	owner := newTestAddress(0x1A)
	registerOwner(state, owner)
	state.setBalance(owner, 10_000_000)
	engine := newTestEngine(state)
	recorder := &recordingEmitter{}
	engine.SetEmitter(recorder)

	if _, err := engine.CreateStake(owner, big.NewInt(10_000_000), 86_400); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Unstake(owner, 0, state.stakeVault); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if len(recorder.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recorder.events))
	}
	if recorder.events[0].Type != EventTypeStakeCreated {
		t.Fatalf("first event = %s", recorder.events[0].Type)
	}
	if recorder.events[1].Type != EventTypeStakeClosed {
		t.Fatalf("second event = %s", recorder.events[1].Type)
	}
	closed := recorder.events[1].Attributes
	if closed["fee"] != "1000000" {
		t.Fatalf("fee attribute = %q", closed["fee"])
	}
	if closed["returned"] != "9000000" {
		t.Fatalf("returned attribute = %q", closed["returned"])
	}
}
