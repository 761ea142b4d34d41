package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"fplstake/core"
	"fplstake/native/fpl"
	"fplstake/native/stake"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestsPerSec  = 10
	requestBurst    = 20
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the node's transitions over JSON-RPC 2.0. Every mutating
// method requires the bearer token from FPLSTAKE_RPC_TOKEN; reads stay open.
type Server struct {
	node *core.Node

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	authToken string
}

func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		limiters:  make(map[string]*rate.Limiter),
		authToken: strings.TrimSpace(os.Getenv("FPLSTAKE_RPC_TOKEN")),
	}
}

// Handler returns the HTTP handler serving RPC, metrics and health probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) Start(addr string) error {
	fmt.Printf("Starting JSON-RPC server on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) limiter(source string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), requestBurst)
		s.limiters[source] = limiter
	}
	return limiter
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "rpc auth token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}

	source, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		source = r.RemoteAddr
	}
	if !s.limiter(source).Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeServerError, "rate limit exceeded", nil)
		return
	}

	var req RPCRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}

	switch req.Method {
	case "stake_create":
		s.handleStakeCreate(w, r, &req)
	case "stake_unstake":
		s.handleStakeUnstake(w, r, &req)
	case "stake_get":
		s.handleStakeGet(w, r, &req)
	case "stake_list":
		s.handleStakeList(w, r, &req)
	case "stake_getConfig":
		s.handleStakeGetConfig(w, r, &req)
	case "stake_setConfig":
		s.handleStakeSetConfig(w, r, &req)
	case "stake_treasury":
		s.handleStakeTreasury(w, r, &req)
	case "bank_balance":
		s.handleBankBalance(w, r, &req)
	case "fpl_register":
		s.handleFplRegister(w, r, &req)
	case "fpl_get":
		s.handleFplGet(w, r, &req)
	case "fpl_global":
		s.handleFplGlobal(w, r, &req)
	case "fpl_initGlobal":
		s.handleFplInitGlobal(w, r, &req)
	case "fpl_setTeamData":
		s.handleFplSetTeamData(w, r, &req)
	case "fpl_recordScores":
		s.handleFplRecordScores(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// errorCode classifies engine failures onto JSON-RPC error codes so callers
// can distinguish bad input from authorization rejections.
func errorCode(err error) int {
	switch {
	case errors.Is(err, stake.ErrInvalidStakeAmount),
		errors.Is(err, stake.ErrInvalidLockPeriod),
		errors.Is(err, fpl.ErrInvalidFplID):
		return codeInvalidParams
	case errors.Is(err, stake.ErrUnauthorizedAccess),
		errors.Is(err, fpl.ErrUnauthorized):
		return codeUnauthorized
	default:
		return codeServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	code := errorCode(err)
	status := http.StatusBadRequest
	if code == codeUnauthorized {
		status = http.StatusForbidden
	}
	writeError(w, status, id, code, err.Error(), nil)
}
