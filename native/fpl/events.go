package fpl

import (
	"strconv"

	"fplstake/core/types"
	"fplstake/crypto"
)

const (
	EventTypeProfileRegistered = "fpl.profile.registered"
	EventTypeScoresRecorded    = "fpl.scores.recorded"
	EventTypeGlobalInitialized = "fpl.global.initialized"
)

// NewProfileRegisteredEvent returns the payload emitted when an authority
// registers its FPL profile.
func NewProfileRegisteredEvent(p *Profile) *types.Event {
	if p == nil {
		return nil
	}
	return &types.Event{Type: EventTypeProfileRegistered, Attributes: map[string]string{
		"authority": crypto.MustNewAddress(p.Authority[:]).String(),
		"fplId":     p.FplID,
	}}
}

// NewScoresRecordedEvent returns the payload emitted after an oracle score
// update.
func NewScoresRecordedEvent(p *Profile) *types.Event {
	if p == nil {
		return nil
	}
	return &types.Event{Type: EventTypeScoresRecorded, Attributes: map[string]string{
		"authority":   crypto.MustNewAddress(p.Authority[:]).String(),
		"weeklyScore": strconv.FormatUint(uint64(p.WeeklyScore), 10),
		"totalScore":  strconv.FormatUint(uint64(p.TotalScore), 10),
		"lastUpdated": strconv.FormatInt(p.LastUpdated, 10),
	}}
}

// NewGlobalInitializedEvent returns the payload emitted when the season
// configuration is bootstrapped.
func NewGlobalInitializedEvent(g *GlobalState) *types.Event {
	if g == nil {
		return nil
	}
	return &types.Event{Type: EventTypeGlobalInitialized, Attributes: map[string]string{
		"admin":           crypto.MustNewAddress(g.Admin[:]).String(),
		"currentGameweek": strconv.FormatUint(uint64(g.CurrentGameweek), 10),
		"seasonStart":     strconv.FormatInt(g.SeasonStart, 10),
		"seasonEnd":       strconv.FormatInt(g.SeasonEnd, 10),
	}}
}
