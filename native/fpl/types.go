package fpl

import "errors"

var (
	// ErrInvalidFplID is returned when the external FPL identifier is empty
	// or longer than 20 characters.
	ErrInvalidFplID = errors.New("fpl: invalid fpl id")
	// ErrProfileExists is returned when an authority already has a profile.
	ErrProfileExists = errors.New("fpl: profile already registered")
	// ErrProfileNotFound is returned when no profile exists for the
	// authority.
	ErrProfileNotFound = errors.New("fpl: profile not found")
	// ErrGlobalNotSet is returned when the season configuration has not
	// been initialised.
	ErrGlobalNotSet = errors.New("fpl: global state not initialised")
	// ErrGlobalAlreadySet is returned on a repeated bootstrap attempt.
	ErrGlobalAlreadySet = errors.New("fpl: global state already initialised")
	// ErrUnauthorized is returned when a caller other than the configured
	// admin attempts an admin or oracle mutation.
	ErrUnauthorized = errors.New("fpl: unauthorized")
)

// Profile binds a wallet identity to its external fantasy-sports record. The
// score counters and team blob are written by the oracle flow; the staking
// core only ever resolves the profile for existence.
type Profile struct {
	Authority   [20]byte
	FplID       string
	TeamData    []byte
	WeeklyScore uint32
	TotalScore  uint32
	LastUpdated int64
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TeamData = append([]byte(nil), p.TeamData...)
	return &clone
}

// GlobalState is the admin-written season configuration consumed, never
// produced, by the rest of the system.
type GlobalState struct {
	Admin           [20]byte
	CurrentGameweek uint8
	SeasonStart     int64
	SeasonEnd       int64
	APIURL          string
}

// Clone returns a copy of the global state.
func (g *GlobalState) Clone() *GlobalState {
	if g == nil {
		return nil
	}
	clone := *g
	return &clone
}

// GlobalParams carries the bootstrap inputs for InitializeGlobal.
type GlobalParams struct {
	CurrentGameweek uint8
	SeasonStart     int64
	SeasonEnd       int64
	APIURL          string
}
