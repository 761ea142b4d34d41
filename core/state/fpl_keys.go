package state

import (
	"fmt"

	"fplstake/native/fpl"
)

var (
	fplProfilePrefix = []byte("fpl/profile/")
	fplGlobalKey     = []byte("fpl/global")
)

func fplProfileKey(authority [20]byte) []byte {
	buf := make([]byte, len(fplProfilePrefix)+len(authority))
	copy(buf, fplProfilePrefix)
	copy(buf[len(fplProfilePrefix):], authority[:])
	return buf
}

type storedProfile struct {
	Authority   [20]byte
	FplID       string
	TeamData    []byte
	WeeklyScore uint32
	TotalScore  uint32
	LastUpdated uint64
}

// FplProfilePut persists the profile under its authority address.
func (m *Manager) FplProfilePut(p *fpl.Profile) error {
	if p == nil {
		return fmt.Errorf("fpl: nil profile")
	}
	updated := p.LastUpdated
	if updated < 0 {
		updated = 0
	}
	return m.KVPut(fplProfileKey(p.Authority), &storedProfile{
		Authority:   p.Authority,
		FplID:       p.FplID,
		TeamData:    append([]byte(nil), p.TeamData...),
		WeeklyScore: p.WeeklyScore,
		TotalScore:  p.TotalScore,
		LastUpdated: uint64(updated),
	})
}

// FplProfileGet loads the profile registered for the authority.
func (m *Manager) FplProfileGet(authority [20]byte) (*fpl.Profile, bool) {
	stored := new(storedProfile)
	ok, err := m.KVGet(fplProfileKey(authority), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &fpl.Profile{
		Authority:   stored.Authority,
		FplID:       stored.FplID,
		TeamData:    append([]byte(nil), stored.TeamData...),
		WeeklyScore: stored.WeeklyScore,
		TotalScore:  stored.TotalScore,
		LastUpdated: int64(stored.LastUpdated),
	}, true
}

// ResolveProfile reports whether a profile exists for the owner and returns
// its handle. The stake engine consults this at open time and never mutates
// the profile.
func (m *Manager) ResolveProfile(owner [20]byte) ([20]byte, bool, error) {
	profile, ok := m.FplProfileGet(owner)
	if !ok {
		return [20]byte{}, false, nil
	}
	return profile.Authority, true, nil
}

type storedGlobal struct {
	Admin           [20]byte
	CurrentGameweek uint8
	SeasonStart     uint64
	SeasonEnd       uint64
	APIURL          string
}

// FplGlobalPut persists the season configuration.
func (m *Manager) FplGlobalPut(g *fpl.GlobalState) error {
	if g == nil {
		return fmt.Errorf("fpl: nil global state")
	}
	start := g.SeasonStart
	if start < 0 {
		start = 0
	}
	end := g.SeasonEnd
	if end < 0 {
		end = 0
	}
	return m.KVPut(fplGlobalKey, &storedGlobal{
		Admin:           g.Admin,
		CurrentGameweek: g.CurrentGameweek,
		SeasonStart:     uint64(start),
		SeasonEnd:       uint64(end),
		APIURL:          g.APIURL,
	})
}

// FplGlobalGet loads the season configuration if initialised.
func (m *Manager) FplGlobalGet() (*fpl.GlobalState, bool) {
	stored := new(storedGlobal)
	ok, err := m.KVGet(fplGlobalKey, stored)
	if err != nil || !ok {
		return nil, false
	}
	return &fpl.GlobalState{
		Admin:           stored.Admin,
		CurrentGameweek: stored.CurrentGameweek,
		SeasonStart:     int64(stored.SeasonStart),
		SeasonEnd:       int64(stored.SeasonEnd),
		APIURL:          stored.APIURL,
	}, true
}
