package core

import (
	"errors"
	"math/big"
	"sync"

	"fplstake/core/events"
	"fplstake/core/state"
	"fplstake/native/fpl"
	"fplstake/native/stake"
	"fplstake/observability/metrics"
	"fplstake/storage"
)

// ErrGlobalNotInitialized is returned by admin operations before the season
// bootstrap has run.
var ErrGlobalNotInitialized = errors.New("core: global state not initialised")

// Node owns the durable state and serialises every transition behind a single
// mutex. Mutating transitions run against a storage overlay that stages their
// writes; the overlay is flushed to the database only after the engine
// succeeds, so a failed or faulted transition leaves the committed state
// untouched. Events raised during a transition are held in a buffer and
// forwarded on the same commit.
type Node struct {
	db storage.Database

	stateMu sync.Mutex
	state   *state.Manager

	emitter events.Emitter
	nowFn   func() int64
}

// NewNode creates a node over the provided database.
func NewNode(db storage.Database) *Node {
	return &Node{
		db:      db,
		state:   state.NewManager(db),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter wires an event sink such as the stake indexer. Passing nil
// resets to a no-op.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.emitter = emitter
}

// SetNowFunc overrides the time source for deterministic tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.nowFn = now
}

// commit runs a mutating transition against an overlay of the database and
// flushes the staged writes only after the transition succeeds. Buffered
// events follow the flush, never a failed transition.
func (n *Node) commit(fn func(mgr *state.Manager, emitter events.Emitter) error) error {
	overlay := storage.NewOverlay(n.db)
	buffered := events.NewBuffer()
	if err := fn(state.NewManager(overlay), buffered); err != nil {
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	buffered.FlushTo(n.emitter)
	return nil
}

func (n *Node) stakeEngine(mgr *state.Manager, emitter events.Emitter) *stake.Engine {
	engine := stake.NewEngine()
	engine.SetState(mgr)
	engine.SetEmitter(emitter)
	if n.nowFn != nil {
		engine.SetNowFunc(n.nowFn)
	}
	return engine
}

func (n *Node) fplRegistry(mgr *state.Manager, emitter events.Emitter) *fpl.Registry {
	registry := fpl.NewRegistry()
	registry.SetState(mgr)
	registry.SetEmitter(emitter)
	if n.nowFn != nil {
		registry.SetNowFunc(n.nowFn)
	}
	return registry
}

func (n *Node) requireAdmin(caller [20]byte) error {
	global, ok := n.state.FplGlobalGet()
	if !ok {
		return ErrGlobalNotInitialized
	}
	if global.Admin != caller {
		return stake.ErrUnauthorizedAccess
	}
	return nil
}

// --- Stake operations ---

// CreateStake opens a stake for the owner under the configured rules.
func (n *Node) CreateStake(owner [20]byte, amount *big.Int, lockDuration uint64) (*stake.Stake, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var record *stake.Stake
	err := n.commit(func(mgr *state.Manager, emitter events.Emitter) error {
		created, err := n.stakeEngine(mgr, emitter).CreateStake(owner, amount, lockDuration)
		if err != nil {
			return err
		}
		record = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Stake().ObserveStakeOpened()
	return record, nil
}

// Unstake closes the caller's stake, deriving the vault address internally.
func (n *Node) Unstake(caller [20]byte, sequence uint64) (*stake.UnstakeReceipt, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.unstakeLocked(caller, sequence, n.state.StakeVaultAddress())
}

// UnstakeFromVault closes the caller's stake, debiting the vault the caller
// names. The engine re-derives the expected address and rejects substitutes.
func (n *Node) UnstakeFromVault(caller [20]byte, sequence uint64, vault [20]byte) (*stake.UnstakeReceipt, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.unstakeLocked(caller, sequence, vault)
}

func (n *Node) unstakeLocked(caller [20]byte, sequence uint64, vault [20]byte) (*stake.UnstakeReceipt, error) {
	var receipt *stake.UnstakeReceipt
	err := n.commit(func(mgr *state.Manager, emitter events.Emitter) error {
		settled, err := n.stakeEngine(mgr, emitter).Unstake(caller, sequence, vault)
		if err != nil {
			return err
		}
		receipt = settled
		return nil
	})
	if err != nil {
		return nil, err
	}
	early := receipt.Fee != nil && receipt.Fee.Sign() > 0
	metrics.Stake().ObserveStakeClosed(early, receipt.Fee)
	return receipt, nil
}

// SetStakeConfig replaces the validation rules. Restricted to the admin
// configured at season bootstrap.
func (n *Node) SetStakeConfig(caller [20]byte, cfg *stake.Config) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.requireAdmin(caller); err != nil {
		return err
	}
	return n.commit(func(mgr *state.Manager, _ events.Emitter) error {
		return mgr.StakeConfigPut(cfg)
	})
}

// StakeConfig returns the current validation rules.
func (n *Node) StakeConfig() (*stake.Config, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	cfg, ok := n.state.StakeConfigGet()
	if !ok {
		return nil, stake.ErrConfigNotSet
	}
	return cfg, nil
}

// StakeGet returns the record addressed by (owner, sequence).
func (n *Node) StakeGet(owner [20]byte, sequence uint64) (*stake.Stake, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	record, ok := n.state.StakeGet(owner, sequence)
	if !ok {
		return nil, stake.ErrStakeNotFound
	}
	return record, nil
}

// StakesByOwner lists the owner's full stake history.
func (n *Node) StakesByOwner(owner [20]byte) ([]*stake.Stake, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.StakesByOwner(owner)
}

// Treasury returns the fee accumulator record.
func (n *Node) Treasury() (*stake.Treasury, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	treasury, ok := n.state.TreasuryGet()
	if !ok {
		return &stake.Treasury{TotalFees: big.NewInt(0)}, nil
	}
	return treasury, nil
}

// InitializeTreasury writes the treasury distribution settings. Restricted to
// the admin; the running total is preserved.
func (n *Node) InitializeTreasury(caller [20]byte, protocolFeePercent, reservePercentage uint8) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := n.requireAdmin(caller); err != nil {
		return err
	}
	if protocolFeePercent > 100 || reservePercentage > 100 {
		return errors.New("core: treasury percentages out of range")
	}
	return n.commit(func(mgr *state.Manager, _ events.Emitter) error {
		treasury, ok := mgr.TreasuryGet()
		if !ok {
			treasury = &stake.Treasury{TotalFees: big.NewInt(0)}
		}
		treasury.Admin = caller
		treasury.ProtocolFeePercent = protocolFeePercent
		treasury.ReservePercentage = reservePercentage
		return mgr.TreasuryPut(treasury)
	})
}

// StakeVaultAddress exposes the derived escrow vault address.
func (n *Node) StakeVaultAddress() [20]byte {
	return n.state.StakeVaultAddress()
}

// TreasuryVaultAddress exposes the derived treasury vault address.
func (n *Node) TreasuryVaultAddress() [20]byte {
	return n.state.TreasuryVaultAddress()
}

// --- FPL operations ---

// InitializeFplGlobal bootstraps the season configuration; the caller becomes
// the admin.
func (n *Node) InitializeFplGlobal(admin [20]byte, params fpl.GlobalParams) (*fpl.GlobalState, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var global *fpl.GlobalState
	err := n.commit(func(mgr *state.Manager, emitter events.Emitter) error {
		created, err := n.fplRegistry(mgr, emitter).InitializeGlobal(admin, params)
		if err != nil {
			return err
		}
		global = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return global, nil
}

// FplGlobal returns the season configuration.
func (n *Node) FplGlobal() (*fpl.GlobalState, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.fplRegistry(n.state, events.NoopEmitter{}).Global()
}

// RegisterProfile binds the authority to its external FPL identifier.
func (n *Node) RegisterProfile(authority [20]byte, fplID string) (*fpl.Profile, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var profile *fpl.Profile
	err := n.commit(func(mgr *state.Manager, emitter events.Emitter) error {
		registered, err := n.fplRegistry(mgr, emitter).Register(authority, fplID)
		if err != nil {
			return err
		}
		profile = registered
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// FplProfile returns the profile registered for the authority.
func (n *Node) FplProfile(authority [20]byte) (*fpl.Profile, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.fplRegistry(n.state, events.NoopEmitter{}).Get(authority)
}

// SetTeamData stores the serialized team blob on a profile (oracle flow).
func (n *Node) SetTeamData(caller, authority [20]byte, data []byte) (*fpl.Profile, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var profile *fpl.Profile
	err := n.commit(func(mgr *state.Manager, emitter events.Emitter) error {
		updated, err := n.fplRegistry(mgr, emitter).SetTeamData(caller, authority, data)
		if err != nil {
			return err
		}
		profile = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// RecordScores updates a profile's score counters (oracle flow).
func (n *Node) RecordScores(caller, authority [20]byte, weekly, total uint32) (*fpl.Profile, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var profile *fpl.Profile
	err := n.commit(func(mgr *state.Manager, emitter events.Emitter) error {
		updated, err := n.fplRegistry(mgr, emitter).RecordScores(caller, authority, weekly, total)
		if err != nil {
			return err
		}
		profile = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// --- Accounts ---

// Balance returns the spendable balance for the address.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	if account.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(account.Balance), nil
}

// SetBalance overwrites an account balance. Used by genesis allocation and
// tests; not reachable from the RPC surface.
func (n *Node) SetBalance(addr [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	return n.commit(func(mgr *state.Manager, _ events.Emitter) error {
		account, err := mgr.GetAccount(addr[:])
		if err != nil {
			return err
		}
		account.Balance = new(big.Int).Set(amount)
		return mgr.PutAccount(addr[:], account)
	})
}

// Close releases the backing database.
func (n *Node) Close() {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.db.Close()
}
