package http

import (
	"net/http"

	"funetec/internal/core"
)

func (s *Server) handleAgingReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", s.ledger.Today())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.ledger.AgingReport(r.Context(), asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAgingView(report))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of", s.ledger.Today())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.ledger.Summary(r.Context(), asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryView(sum))
}

func (s *Server) handlePaymentsReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.ledger.PaymentsBetween(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPaymentViews(items))
}

func (s *Server) handlePaidInstallmentsReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.ledger.InstallmentsPaidBetween(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newInstallmentViews(items))
}

func dateRange(r *http.Request) (core.Date, core.Date, error) {
	from, err := queryDate(r, "from", core.Date{})
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	to, err := queryDate(r, "to", core.Date{})
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return from, to, nil
}
