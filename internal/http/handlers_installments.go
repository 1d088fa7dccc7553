package http

import (
	"net/http"
)

func (s *Server) handleApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.ledger.ApplyPayment(r.Context(), actorFrom(r), id, req.Amount, s.paidOnOrToday(req.PaidOn), req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", installmentPath(id)+"/payments")
	writeJSON(w, http.StatusCreated, paymentResultView{
		Payment:     paymentView(res.Payment),
		Installment: newInstallmentView(res.Installment),
		Contract:    newContractView(res.Contract),
	})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.ledger.PaymentHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPaymentViews(items))
}

func (s *Server) handleCancelInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reasonRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inst, err := s.ledger.CancelInstallment(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstallmentView(inst))
}

// handlePayBatch settles every listed installment in full. Individual
// failures are reported in the body; the request itself succeeds.
func (s *Server) handlePayBatch(w http.ResponseWriter, r *http.Request) {
	var req payBatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.ledger.PayInFull(r.Context(), actorFrom(r), req.IDs, s.paidOnOrToday(req.PaidOn))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePostpone(w http.ResponseWriter, r *http.Request) {
	var req postponeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.ledger.PostponeInstallments(r.Context(), actorFrom(r), req.IDs, req.Days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
