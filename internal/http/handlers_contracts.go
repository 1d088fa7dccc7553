package http

import (
	"net/http"
	"strconv"
	"strings"

	"funetec/internal/core"
)

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	detail, err := s.ledger.CreateContract(r.Context(), actorFrom(r), req.toNewContract())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", contractPath(detail.Contract.Code))
	writeJSON(w, http.StatusCreated, newContractDetailView(detail))
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	items, err := s.ledger.ListContracts(r.Context(), queryBool(r, "archived"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newContractViews(items))
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	code, err := contractCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.ledger.GetContract(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newContractDetailView(detail))
}

func (s *Server) handleCancelContract(w http.ResponseWriter, r *http.Request) {
	code, err := contractCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reasonRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.ledger.CancelContract(r.Context(), actorFrom(r), code, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newContractView(c))
}

func (s *Server) handleArchiveContract(w http.ResponseWriter, r *http.Request) {
	code, err := contractCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.ledger.ArchiveContract(r.Context(), actorFrom(r), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newContractView(c))
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	code, err := contractCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.ledger.RegenerateInstallments(r.Context(), actorFrom(r), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstallmentViews(items))
}

func (s *Server) handleContractInstallments(w http.ResponseWriter, r *http.Request) {
	code, err := contractCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.ledger.InstallmentsByContract(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstallmentViews(items))
}

func (s *Server) handleAppendInstallment(w http.ResponseWriter, r *http.Request) {
	code, err := contractCode(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req appendInstallmentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inst, err := s.ledger.AppendInstallment(r.Context(), actorFrom(r), code, req.FaceValue, req.DueDate, req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newInstallmentView(inst))
}

// contractPath is the inverse of contractCode.
func contractPath(code string) string {
	seq, year, _ := strings.Cut(code, "/")
	return "/api/contracts/" + year + "/" + seq
}

func installmentPath(id int64) string {
	return "/api/installments/" + strconv.FormatInt(id, 10)
}

// paidOnOrToday defaults a missing payment date to the ledger's today.
func (s *Server) paidOnOrToday(d core.Date) core.Date {
	if d.IsZero() {
		return s.ledger.Today()
	}
	return d
}
