package state

import (
	"testing"

	"fplstake/native/fpl"
)

func TestFplProfileRoundtrip(t *testing.T) {
	mgr := newTestManager(t)
	authority := testStakeAddress(0x11)

	profile := &fpl.Profile{
		Authority:   authority,
		FplID:       "4861234",
		TeamData:    []byte("captain:haaland"),
		WeeklyScore: 58,
		TotalScore:  412,
		LastUpdated: 1_700_000_000,
	}
	if err := mgr.FplProfilePut(profile); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok := mgr.FplProfileGet(authority)
	if !ok {
		t.Fatalf("profile missing")
	}
	if loaded.FplID != "4861234" || string(loaded.TeamData) != "captain:haaland" ||
		loaded.WeeklyScore != 58 || loaded.TotalScore != 412 || loaded.LastUpdated != 1_700_000_000 {
		t.Fatalf("roundtrip mismatch: %+v", loaded)
	}

	if _, ok := mgr.FplProfileGet(testStakeAddress(0x12)); ok {
		t.Fatalf("unexpected profile for unregistered authority")
	}
}

func TestResolveProfile(t *testing.T) {
	mgr := newTestManager(t)
	authority := testStakeAddress(0x13)

	handle, ok, err := mgr.ResolveProfile(authority)
	if err != nil {
		t.Fatalf("resolve fresh: %v", err)
	}
	if ok || handle != ([20]byte{}) {
		t.Fatalf("unregistered authority resolved")
	}

	if err := mgr.FplProfilePut(&fpl.Profile{Authority: authority, FplID: "9"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	handle, ok, err = mgr.ResolveProfile(authority)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || handle != authority {
		t.Fatalf("resolve returned %x (exists=%v)", handle, ok)
	}
}

func TestFplGlobalRoundtrip(t *testing.T) {
	mgr := newTestManager(t)

	if _, ok := mgr.FplGlobalGet(); ok {
		t.Fatalf("global reported present on fresh store")
	}

	global := &fpl.GlobalState{
		Admin:           testStakeAddress(0x14),
		CurrentGameweek: 12,
		SeasonStart:     1_690_000_000,
		SeasonEnd:       1_720_000_000,
		APIURL:          "https://fantasy.premierleague.com/api",
	}
	if err := mgr.FplGlobalPut(global); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok := mgr.FplGlobalGet()
	if !ok {
		t.Fatalf("global missing")
	}
	if loaded.Admin != global.Admin || loaded.CurrentGameweek != 12 ||
		loaded.SeasonStart != global.SeasonStart || loaded.SeasonEnd != global.SeasonEnd ||
		loaded.APIURL != global.APIURL {
		t.Fatalf("roundtrip mismatch: %+v", loaded)
	}
}
