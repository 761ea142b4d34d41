package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"fplstake/crypto"
	"fplstake/native/stake"
)

type stakeCreateParams struct {
	Caller       string `json:"caller"`
	Amount       string `json:"amount"`
	LockDuration uint64 `json:"lockDuration"`
}

type stakeUnstakeParams struct {
	Caller   string `json:"caller"`
	Sequence uint64 `json:"sequence"`
	Vault    string `json:"vault,omitempty"`
}

type stakeQueryParams struct {
	Owner    string `json:"owner"`
	Sequence uint64 `json:"sequence"`
}

type stakeListParams struct {
	Owner string `json:"owner"`
}

type stakeConfigParams struct {
	Caller                    string   `json:"caller"`
	MinStakeAmount            string   `json:"minStakeAmount"`
	MaxStakeAmount            string   `json:"maxStakeAmount"`
	EarlyWithdrawalFeePercent uint8    `json:"earlyWithdrawalFeePercent"`
	LockOptions               []uint64 `json:"lockOptions"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type stakeResult struct {
	Owner         string `json:"owner"`
	Sequence      uint64 `json:"sequence"`
	Amount        string `json:"amount"`
	StartTime     int64  `json:"startTime"`
	LockDuration  uint64 `json:"lockDuration"`
	Profile       string `json:"profile"`
	Active        bool   `json:"active"`
	LastClaimTime int64  `json:"lastClaimTime"`
}

type unstakeResult struct {
	Stake    stakeResult `json:"stake"`
	Returned string      `json:"returned"`
	Fee      string      `json:"fee"`
}

type stakeConfigResult struct {
	MinStakeAmount            string   `json:"minStakeAmount"`
	MaxStakeAmount            string   `json:"maxStakeAmount"`
	EarlyWithdrawalFeePercent uint8    `json:"earlyWithdrawalFeePercent"`
	LockOptions               []uint64 `json:"lockOptions"`
}

type treasuryResult struct {
	Admin              string `json:"admin,omitempty"`
	TotalFees          string `json:"totalFees"`
	ProtocolFeePercent uint8  `json:"protocolFeePercent"`
	ReservePercentage  uint8  `json:"reservePercentage"`
	VaultAddress       string `json:"vaultAddress"`
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddressParam(value, field string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s address: %w", field, err)
	}
	return addr.Array(), nil
}

func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value, nil
}

func formatStake(s *stake.Stake) stakeResult {
	return stakeResult{
		Owner:         crypto.MustNewAddress(s.Owner[:]).String(),
		Sequence:      s.Sequence,
		Amount:        s.Amount.String(),
		StartTime:     s.StartTime,
		LockDuration:  s.LockDuration,
		Profile:       crypto.MustNewAddress(s.Profile[:]).String(),
		Active:        s.Active,
		LastClaimTime: s.LastClaimTime,
	}
}

func (s *Server) handleStakeCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params stakeCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.node.CreateStake(caller, amount, params.LockDuration)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatStake(record))
}

func (s *Server) handleStakeUnstake(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params stakeUnstakeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var receipt *stake.UnstakeReceipt
	if strings.TrimSpace(params.Vault) != "" {
		vault, err := parseAddressParam(params.Vault, "vault")
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		receipt, err = s.node.UnstakeFromVault(caller, params.Sequence, vault)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
	} else {
		receipt, err = s.node.Unstake(caller, params.Sequence)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
	}
	writeResult(w, req.ID, unstakeResult{
		Stake:    formatStake(receipt.Stake),
		Returned: receipt.Returned.String(),
		Fee:      receipt.Fee.String(),
	})
}

func (s *Server) handleStakeGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeQueryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddressParam(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.node.StakeGet(owner, params.Sequence)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatStake(record))
}

func (s *Server) handleStakeList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeListParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddressParam(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	records, err := s.node.StakesByOwner(owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	results := make([]stakeResult, 0, len(records))
	for _, record := range records {
		results = append(results, formatStake(record))
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleStakeGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.node.StakeConfig()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, stakeConfigResult{
		MinStakeAmount:            cfg.MinStakeAmount.String(),
		MaxStakeAmount:            cfg.MaxStakeAmount.String(),
		EarlyWithdrawalFeePercent: cfg.EarlyWithdrawalFeePercent,
		LockOptions:               cfg.LockOptions,
	})
}

func (s *Server) handleStakeSetConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params stakeConfigParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	min, err := parseAmount(params.MinStakeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("minStakeAmount: %v", err), nil)
		return
	}
	max, err := parseAmount(params.MaxStakeAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("maxStakeAmount: %v", err), nil)
		return
	}
	cfg := &stake.Config{
		MinStakeAmount:            min,
		MaxStakeAmount:            max,
		EarlyWithdrawalFeePercent: params.EarlyWithdrawalFeePercent,
		LockOptions:               params.LockOptions,
	}
	if err := s.node.SetStakeConfig(caller, cfg); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleStakeTreasury(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	treasury, err := s.node.Treasury()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := treasuryResult{
		TotalFees:          treasury.TotalFees.String(),
		ProtocolFeePercent: treasury.ProtocolFeePercent,
		ReservePercentage:  treasury.ReservePercentage,
	}
	vault := s.node.TreasuryVaultAddress()
	result.VaultAddress = crypto.MustNewAddress(vault[:]).String()
	if treasury.Admin != ([20]byte{}) {
		result.Admin = crypto.MustNewAddress(treasury.Admin[:]).String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleBankBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := parseAddressParam(params.Address, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
}
