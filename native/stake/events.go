package stake

import (
	"math/big"
	"strconv"

	"fplstake/core/types"
	"fplstake/crypto"
)

const (
	EventTypeStakeCreated = "stake.created"
	EventTypeStakeClosed  = "stake.closed"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func baseAttributes(s *Stake) map[string]string {
	attrs := map[string]string{
		"owner":        crypto.MustNewAddress(s.Owner[:]).String(),
		"sequence":     strconv.FormatUint(s.Sequence, 10),
		"amount":       formatAmount(s.Amount),
		"lockDuration": strconv.FormatUint(s.LockDuration, 10),
		"startTime":    strconv.FormatInt(s.StartTime, 10),
	}
	return attrs
}

// NewCreatedEvent returns the canonical event payload for a newly opened
// stake.
func NewCreatedEvent(s *Stake) *types.Event {
	if s == nil {
		return nil
	}
	return &types.Event{Type: EventTypeStakeCreated, Attributes: baseAttributes(s)}
}

// NewClosedEvent returns the canonical event payload for a closed stake,
// including the settled payout split.
func NewClosedEvent(s *Stake, returned, fee *big.Int) *types.Event {
	if s == nil {
		return nil
	}
	attrs := baseAttributes(s)
	attrs["returned"] = formatAmount(returned)
	attrs["fee"] = formatAmount(fee)
	attrs["closedAt"] = strconv.FormatInt(s.LastClaimTime, 10)
	return &types.Event{Type: EventTypeStakeClosed, Attributes: attrs}
}
