package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/truthstamp/internal/model"
	"github.com/sells-group/truthstamp/internal/store"
)

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return eris.Wrapf(model.ErrValidation, "invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrValidation, "invalid id %q", raw)
	}
	return id, nil
}

func queryUint(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrValidation, "invalid %s %q", name, raw)
	}
	return v, nil
}

// -- contracts --

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	c, err := s.proto.Contract(r.Context(), model.ContractName(chi.URLParam(r, "name")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) setPartner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Partner model.ContractName `json:"partner"`
		Address model.Address      `json:"address"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name := model.ContractName(chi.URLParam(r, "name"))
	if err := s.proto.SetPartner(r.Context(), signer(r), name, req.Partner, req.Address); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contract": name, "partner": req.Partner, "address": req.Address})
}

// -- claims --

func (s *Server) submitClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string   `json:"text"`
		Category string   `json:"category"`
		Sources  []string `json:"sources"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.proto.SubmitClaim(r.Context(), signer(r), req.Text, req.Category, req.Sources)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"claim_id": id})
}

func (s *Server) getClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := s.proto.GetClaim(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) listClaims(w http.ResponseWriter, r *http.Request) {
	start, err := queryUint(r, "start", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryUint(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.proto.ListClaims(r.Context(), start, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": list})
}

func (s *Server) claimCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.proto.ClaimCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": n})
}

func (s *Server) addToStakePool(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.proto.AddToStakePool(r.Context(), signer(r), id, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.proto.GetClaim(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) claimReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.proto.ClaimReviews(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": list})
}

func (s *Server) getConsensus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.proto.Consensus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := s.proto.State(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": id, "state": state})
}

func (s *Server) claimTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.proto.Transfers(r.Context(), store.TransferFilter{ClaimID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": list})
}

func (s *Server) distributeRewards(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	dist, err := s.proto.DistributeRewards(r.Context(), signer(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

// -- experts --

func (s *Server) registerExpert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string   `json:"name"`
		Bio        string   `json:"bio"`
		Categories []string `json:"expertise_categories"`
		Stake      int64    `json:"stake_amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	addr := signer(r)
	if _, err := s.proto.RegisterExpert(r.Context(), addr, req.Name, req.Bio, req.Categories, req.Stake); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.proto.GetExpert(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getExpert(w http.ResponseWriter, r *http.Request) {
	e, err := s.proto.GetExpert(r.Context(), model.Address(chi.URLParam(r, "address")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) expertCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.proto.ExpertCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": n})
}

func (s *Server) getAccuracy(w http.ResponseWriter, r *http.Request) {
	addr := model.Address(chi.URLParam(r, "address"))
	acc, err := s.proto.Accuracy(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "accuracy": acc})
}

func (s *Server) expertReviews(w http.ResponseWriter, r *http.Request) {
	list, err := s.proto.ExpertReviews(r.Context(), model.Address(chi.URLParam(r, "address")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": list})
}

func (s *Server) addStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	addr := signer(r)
	if err := s.proto.AddStake(r.Context(), addr, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.proto.GetExpert(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// -- reviews --

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClaimID    uint64 `json:"claim_id"`
		Verdict    string `json:"verdict"`
		Reasoning  string `json:"reasoning"`
		Confidence uint32 `json:"confidence"`
		Stake      int64  `json:"stake_amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	verdict, err := model.ParseVerdict(req.Verdict)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := s.proto.SubmitReview(r.Context(), signer(r), req.ClaimID, verdict, req.Reasoning, req.Confidence, req.Stake)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"review_id": id})
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rv, err := s.proto.GetReview(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (s *Server) reviewCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.proto.ReviewCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": n})
}

// -- events --

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := queryUint(r, "after", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryUint(r, "limit", 100)
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.proto.Events(r.Context(), store.EventFilter{
		Kind:     model.EventKind(q.Get("kind")),
		EntityID: q.Get("entity_id"),
		AfterSeq: int64(after),
		Limit:    int(limit),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}
