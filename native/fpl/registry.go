package fpl

import (
	"errors"
	"time"

	"fplstake/core/events"
	"fplstake/core/types"
)

var errNilState = errors.New("fpl registry: state not configured")

type registryState interface {
	FplProfileGet(authority [20]byte) (*Profile, bool)
	FplProfilePut(*Profile) error
	FplGlobalGet() (*GlobalState, bool)
	FplGlobalPut(*GlobalState) error
}

type fplEvent struct {
	evt *types.Event
}

func (e fplEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e fplEvent) Event() *types.Event { return e.evt }

// Registry manages the profile records and season configuration. It is plain
// key-value bookkeeping around the custody core: registration by users, score
// and team updates by the oracle, a one-time season bootstrap by the admin.
type Registry struct {
	state   registryState
	emitter events.Emitter
	nowFn   func() int64
}

// NewRegistry creates a registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for deterministic tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(fplEvent{evt: event})
}

func (r *Registry) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

func (r *Registry) requireAdmin(caller [20]byte) error {
	global, ok := r.state.FplGlobalGet()
	if !ok {
		return ErrGlobalNotSet
	}
	if global.Admin != caller {
		return ErrUnauthorized
	}
	return nil
}

// InitializeGlobal writes the season configuration exactly once. The caller
// becomes the admin for subsequent configuration and oracle writes.
func (r *Registry) InitializeGlobal(admin [20]byte, params GlobalParams) (*GlobalState, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if _, ok := r.state.FplGlobalGet(); ok {
		return nil, ErrGlobalAlreadySet
	}
	global := &GlobalState{
		Admin:           admin,
		CurrentGameweek: params.CurrentGameweek,
		SeasonStart:     params.SeasonStart,
		SeasonEnd:       params.SeasonEnd,
		APIURL:          params.APIURL,
	}
	if err := r.state.FplGlobalPut(global); err != nil {
		return nil, err
	}
	r.emit(NewGlobalInitializedEvent(global))
	return global.Clone(), nil
}

// Global returns the current season configuration.
func (r *Registry) Global() (*GlobalState, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	global, ok := r.state.FplGlobalGet()
	if !ok {
		return nil, ErrGlobalNotSet
	}
	return global.Clone(), nil
}

// Register creates the profile binding the authority to its external FPL
// identifier. The identifier must be 1 to 20 characters.
func (r *Registry) Register(authority [20]byte, fplID string) (*Profile, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if len(fplID) == 0 || len(fplID) > 20 {
		return nil, ErrInvalidFplID
	}
	if _, ok := r.state.FplProfileGet(authority); ok {
		return nil, ErrProfileExists
	}
	profile := &Profile{
		Authority:   authority,
		FplID:       fplID,
		TeamData:    []byte{},
		LastUpdated: r.now(),
	}
	if err := r.state.FplProfilePut(profile); err != nil {
		return nil, err
	}
	r.emit(NewProfileRegisteredEvent(profile))
	return profile.Clone(), nil
}

// Get returns the profile registered for the authority.
func (r *Registry) Get(authority [20]byte) (*Profile, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	profile, ok := r.state.FplProfileGet(authority)
	if !ok {
		return nil, ErrProfileNotFound
	}
	return profile.Clone(), nil
}

// SetTeamData replaces the serialized team blob on the authority's profile.
// Restricted to the configured admin, which fronts the oracle process.
func (r *Registry) SetTeamData(caller, authority [20]byte, data []byte) (*Profile, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	profile, ok := r.state.FplProfileGet(authority)
	if !ok {
		return nil, ErrProfileNotFound
	}
	profile.TeamData = append([]byte(nil), data...)
	profile.LastUpdated = r.now()
	if err := r.state.FplProfilePut(profile); err != nil {
		return nil, err
	}
	return profile.Clone(), nil
}

// RecordScores updates the weekly and season score counters on the
// authority's profile. Restricted to the configured admin.
func (r *Registry) RecordScores(caller, authority [20]byte, weekly, total uint32) (*Profile, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	profile, ok := r.state.FplProfileGet(authority)
	if !ok {
		return nil, ErrProfileNotFound
	}
	profile.WeeklyScore = weekly
	profile.TotalScore = total
	profile.LastUpdated = r.now()
	if err := r.state.FplProfilePut(profile); err != nil {
		return nil, err
	}
	r.emit(NewScoresRecordedEvent(profile))
	return profile.Clone(), nil
}
