package stake

import "errors"

var (
	// ErrInvalidStakeAmount is returned when the requested amount falls
	// outside the configured bounds.
	ErrInvalidStakeAmount = errors.New("stake: invalid stake amount")
	// ErrInvalidLockPeriod is returned when the requested lock duration is
	// not one of the configured options.
	ErrInvalidLockPeriod = errors.New("stake: invalid lock period")
	// ErrInsufficientFunds is returned when the staker's balance cannot
	// cover the requested amount.
	ErrInsufficientFunds = errors.New("stake: insufficient funds")
	// ErrUnauthorizedAccess is returned on owner mismatch or when the
	// presented vault does not resolve to the engine's derived address.
	ErrUnauthorizedAccess = errors.New("stake: unauthorized access")
	// ErrStakeNotActive is returned when closing a stake already in its
	// terminal state.
	ErrStakeNotActive = errors.New("stake: stake not active")
	// ErrStakeNotFound is returned when no record exists for the owner and
	// sequence number pair.
	ErrStakeNotFound = errors.New("stake: stake not found")
	// ErrProfileNotFound is returned when the staker has no registered
	// profile to link the stake to.
	ErrProfileNotFound = errors.New("stake: linked profile not found")
	// ErrConfigNotSet is returned when no validation rules have been
	// configured by the administrator.
	ErrConfigNotSet = errors.New("stake: config not initialised")
)
