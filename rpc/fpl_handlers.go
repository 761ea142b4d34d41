package rpc

import (
	"encoding/base64"
	"net/http"

	"fplstake/crypto"
	"fplstake/native/fpl"
)

type fplRegisterParams struct {
	Caller string `json:"caller"`
	FplID  string `json:"fplId"`
}

type fplQueryParams struct {
	Authority string `json:"authority"`
}

type fplInitGlobalParams struct {
	Caller          string `json:"caller"`
	CurrentGameweek uint8  `json:"currentGameweek"`
	SeasonStart     int64  `json:"seasonStart"`
	SeasonEnd       int64  `json:"seasonEnd"`
	APIURL          string `json:"apiUrl"`
}

type fplTeamDataParams struct {
	Caller    string `json:"caller"`
	Authority string `json:"authority"`
	TeamData  string `json:"teamData"`
}

type fplScoresParams struct {
	Caller      string `json:"caller"`
	Authority   string `json:"authority"`
	WeeklyScore uint32 `json:"weeklyScore"`
	TotalScore  uint32 `json:"totalScore"`
}

type fplProfileResult struct {
	Authority   string `json:"authority"`
	FplID       string `json:"fplId"`
	TeamData    string `json:"teamData,omitempty"`
	WeeklyScore uint32 `json:"weeklyScore"`
	TotalScore  uint32 `json:"totalScore"`
	LastUpdated int64  `json:"lastUpdated"`
}

type fplGlobalResult struct {
	Admin           string `json:"admin"`
	CurrentGameweek uint8  `json:"currentGameweek"`
	SeasonStart     int64  `json:"seasonStart"`
	SeasonEnd       int64  `json:"seasonEnd"`
	APIURL          string `json:"apiUrl"`
}

func formatProfile(p *fpl.Profile) fplProfileResult {
	result := fplProfileResult{
		Authority:   crypto.MustNewAddress(p.Authority[:]).String(),
		FplID:       p.FplID,
		WeeklyScore: p.WeeklyScore,
		TotalScore:  p.TotalScore,
		LastUpdated: p.LastUpdated,
	}
	if len(p.TeamData) > 0 {
		result.TeamData = base64.StdEncoding.EncodeToString(p.TeamData)
	}
	return result
}

func formatGlobal(g *fpl.GlobalState) fplGlobalResult {
	return fplGlobalResult{
		Admin:           crypto.MustNewAddress(g.Admin[:]).String(),
		CurrentGameweek: g.CurrentGameweek,
		SeasonStart:     g.SeasonStart,
		SeasonEnd:       g.SeasonEnd,
		APIURL:          g.APIURL,
	}
}

func (s *Server) handleFplRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params fplRegisterParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	profile, err := s.node.RegisterProfile(caller, params.FplID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatProfile(profile))
}

func (s *Server) handleFplGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params fplQueryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	authority, err := parseAddressParam(params.Authority, "authority")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	profile, err := s.node.FplProfile(authority)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatProfile(profile))
}

func (s *Server) handleFplGlobal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	global, err := s.node.FplGlobal()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGlobal(global))
}

func (s *Server) handleFplInitGlobal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params fplInitGlobalParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	global, err := s.node.InitializeFplGlobal(caller, fpl.GlobalParams{
		CurrentGameweek: params.CurrentGameweek,
		SeasonStart:     params.SeasonStart,
		SeasonEnd:       params.SeasonEnd,
		APIURL:          params.APIURL,
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGlobal(global))
}

func (s *Server) handleFplSetTeamData(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params fplTeamDataParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	authority, err := parseAddressParam(params.Authority, "authority")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	data, err := base64.StdEncoding.DecodeString(params.TeamData)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "teamData must be base64", err.Error())
		return
	}
	profile, err := s.node.SetTeamData(caller, authority, data)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatProfile(profile))
}

func (s *Server) handleFplRecordScores(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params fplScoresParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	authority, err := parseAddressParam(params.Authority, "authority")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	profile, err := s.node.RecordScores(caller, authority, params.WeeklyScore, params.TotalScore)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatProfile(profile))
}
