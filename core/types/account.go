package types

import "math/big"

// Account tracks the spendable balance held by a 20-byte address. Module
// vaults (stake vault, treasury vault) reuse the same structure; they are
// ordinary balance entries whose addresses have no controlling key.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy so callers can mutate freely before persisting.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
