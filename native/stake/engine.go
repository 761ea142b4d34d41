package stake

import (
	"errors"
	"math/big"
	"time"

	"fplstake/core/events"
	"fplstake/core/types"
)

var errNilState = errors.New("stake engine: state not configured")

type engineState interface {
	StakeConfigGet() (*Config, bool)
	StakeGet(owner [20]byte, sequence uint64) (*Stake, bool)
	StakePut(*Stake) error
	StakeSequence() (uint64, error)
	IncrementStakeSequence() (uint64, error)
	StakeVaultAddress() [20]byte
	TreasuryVaultAddress() [20]byte
	TreasuryGet() (*Treasury, bool)
	TreasuryPut(*Treasury) error
	ResolveProfile(owner [20]byte) ([20]byte, bool, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type stakeEvent struct {
	evt *types.Event
}

func (e stakeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e stakeEvent) Event() *types.Event { return e.evt }

// Engine implements the two custody transitions: opening a stake into the
// module vault and closing it back out with the time-based fee routed to the
// treasury. The caller serialises invocations and commits the handed-in state
// only after a transition succeeds; the engine orders every validation before
// the first mutation.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a stake engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(stakeEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// transfer moves amount between two balance entries, debiting first so an
// underfunded source aborts before any write.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return ErrInvalidStakeAmount
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

func (e *Engine) config() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	cfg, ok := e.state.StakeConfigGet()
	if !ok || cfg == nil {
		return nil, ErrConfigNotSet
	}
	return cfg, nil
}

// CreateStake validates the request against the configured rules, escrows the
// amount in the stake vault and appends a record addressed by the current
// sequence number. The counter advances exactly once per successful open.
func (e *Engine) CreateStake(owner [20]byte, amount *big.Int, lockDuration uint64) (*Stake, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 || amt.Cmp(cfg.MinStakeAmount) < 0 || amt.Cmp(cfg.MaxStakeAmount) > 0 {
		return nil, ErrInvalidStakeAmount
	}
	if !cfg.AllowsLock(lockDuration) {
		return nil, ErrInvalidLockPeriod
	}
	profile, ok, err := e.state.ResolveProfile(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProfileNotFound
	}
	sequence, err := e.state.StakeSequence()
	if err != nil {
		return nil, err
	}
	if err := e.transfer(owner, e.state.StakeVaultAddress(), amt); err != nil {
		return nil, err
	}
	now := e.now()
	record := &Stake{
		Owner:         owner,
		Amount:        amt,
		StartTime:     now,
		LockDuration:  lockDuration,
		Profile:       profile,
		Active:        true,
		LastClaimTime: now,
		Sequence:      sequence,
	}
	if err := e.state.StakePut(record); err != nil {
		return nil, err
	}
	if _, err := e.state.IncrementStakeSequence(); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(record))
	return record.Clone(), nil
}

// Unstake closes the record addressed by (caller, sequence). A closure before
// the lock duration elapses pays a fee into the treasury; the fee is floored
// so rounding always favours the staker, and the sum of the payout and the
// fee equals the original principal exactly.
func (e *Engine) Unstake(caller [20]byte, sequence uint64, vault [20]byte) (*UnstakeReceipt, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	record, ok := e.state.StakeGet(caller, sequence)
	if !ok {
		return nil, ErrStakeNotFound
	}
	if record.Owner != caller {
		return nil, ErrUnauthorizedAccess
	}
	if !record.Active {
		return nil, ErrStakeNotActive
	}
	// The caller names the fund source; it must resolve to the same address
	// the engine derives for its own vault.
	if vault != e.state.StakeVaultAddress() {
		return nil, ErrUnauthorizedAccess
	}
	now := e.now()
	fee := big.NewInt(0)
	returned := cloneBigInt(record.Amount)
	if now < record.EndTime() {
		fee = new(big.Int).Mul(record.Amount, big.NewInt(int64(cfg.EarlyWithdrawalFeePercent)))
		fee.Div(fee, big.NewInt(100))
		if fee.Cmp(returned) > 0 {
			fee = new(big.Int).Set(returned)
		}
		returned = new(big.Int).Sub(returned, fee)
	}
	if returned.Sign() > 0 {
		if err := e.transfer(vault, caller, returned); err != nil {
			return nil, err
		}
	}
	if fee.Sign() > 0 {
		treasury, ok := e.state.TreasuryGet()
		if !ok || treasury == nil {
			treasury = &Treasury{TotalFees: big.NewInt(0)}
		}
		if treasury.TotalFees == nil {
			treasury.TotalFees = big.NewInt(0)
		}
		treasury.TotalFees = new(big.Int).Add(treasury.TotalFees, fee)
		if err := e.transfer(vault, e.state.TreasuryVaultAddress(), fee); err != nil {
			return nil, err
		}
		if err := e.state.TreasuryPut(treasury); err != nil {
			return nil, err
		}
	}
	record.Active = false
	record.LastClaimTime = now
	if err := e.state.StakePut(record); err != nil {
		return nil, err
	}
	e.emit(NewClosedEvent(record, returned, fee))
	return &UnstakeReceipt{Stake: record.Clone(), Returned: returned, Fee: fee}, nil
}
