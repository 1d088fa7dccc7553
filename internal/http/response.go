package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"funetec/internal/core"
	"funetec/internal/log"
	"funetec/internal/services"
)

// retryAfterConflict is sent with 409 responses; the lock is usually free
// again well within a second.
const retryAfterConflict = 1

type errorBody struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	Remaining *core.Money       `json:"remaining,omitempty"`
}

type contractView struct {
	Code             string          `json:"code"`
	Counterparty     string          `json:"counterparty"`
	TaxID            string          `json:"tax_id"`
	PersonType       core.PersonType `json:"person_type"`
	Description      string          `json:"description,omitempty"`
	Total            core.Money      `json:"total"`
	Paid             core.Money      `json:"paid"`
	Pending          core.Money      `json:"pending"`
	Net              core.Money      `json:"net"`
	StartDate        core.Date       `json:"start_date"`
	EndDate          core.Date       `json:"end_date"`
	InstallmentCount int             `json:"installment_count"`
	FirstDueDate     core.Date       `json:"first_due_date"`
	Status           string          `json:"status"`
	StatusLabel      string          `json:"status_label"`
	Version          int64           `json:"version"`
	Archived         bool            `json:"archived"`
	CreatedBy        string          `json:"created_by"`
	UpdatedBy        string          `json:"updated_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type installmentView struct {
	ID           int64      `json:"id"`
	ContractCode string     `json:"contract_code"`
	Sequence     int        `json:"sequence"`
	DueDate      core.Date  `json:"due_date"`
	FaceValue    core.Money `json:"face_value"`
	AmountPaid   core.Money `json:"amount_paid"`
	Balance      core.Money `json:"balance"`
	PaymentDate  core.Date  `json:"payment_date"`
	Notes        string     `json:"notes,omitempty"`
	Status       string     `json:"status"`
	StatusLabel  string     `json:"status_label"`
}

type paymentView struct {
	ID            string     `json:"id"`
	InstallmentID int64      `json:"installment_id"`
	ContractCode  string     `json:"contract_code"`
	Sequence      int        `json:"sequence"`
	Amount        core.Money `json:"amount"`
	PaidOn        core.Date  `json:"paid_on"`
	Note          string     `json:"note,omitempty"`
	RecordedBy    string     `json:"recorded_by"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

type contractDetailView struct {
	Contract     contractView      `json:"contract"`
	Installments []installmentView `json:"installments"`
	PercentPaid  string            `json:"percent_paid"`
	HasOverdue   bool              `json:"has_overdue"`
	NextDue      *installmentView  `json:"next_due,omitempty"`
}

type paymentResultView struct {
	Payment     paymentView     `json:"payment"`
	Installment installmentView `json:"installment"`
	Contract    contractView    `json:"contract"`
}

type agingBucketView struct {
	Bucket  core.AgingBucket `json:"bucket"`
	Count   int              `json:"count"`
	Balance core.Money       `json:"balance"`
}

type agingItemView struct {
	Installment installmentView  `json:"installment"`
	DaysOverdue int              `json:"days_overdue"`
	Bucket      core.AgingBucket `json:"bucket"`
}

type agingView struct {
	AsOf    core.Date         `json:"as_of"`
	Buckets []agingBucketView `json:"buckets"`
	Items   []agingItemView   `json:"items"`
	Total   core.Money        `json:"total"`
}

type summaryView struct {
	AsOf        core.Date  `json:"as_of"`
	Overdue     int        `json:"overdue"`
	DueToday    int        `json:"due_today"`
	DueSoon     int        `json:"due_soon"`
	Paid        int        `json:"paid"`
	TotalFace   core.Money `json:"total_face"`
	OverdueOpen core.Money `json:"overdue_open"`
}

type notificationView struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	ContractCode  string     `json:"contract_code"`
	InstallmentID int64      `json:"installment_id"`
	Sequence      int        `json:"sequence"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	DueDate       core.Date  `json:"due_date"`
	Amount        core.Money `json:"amount"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
}

func newContractView(c core.Contract) contractView {
	return contractView{
		Code:             c.Code,
		Counterparty:     c.Counterparty,
		TaxID:            core.FormatTaxID(c.TaxID),
		PersonType:       c.PersonType,
		Description:      c.Description,
		Total:            c.Total,
		Paid:             c.Paid,
		Pending:          c.Pending,
		Net:              c.Net,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		InstallmentCount: c.InstallmentCount,
		FirstDueDate:     c.FirstDueDate,
		Status:           string(c.Status),
		StatusLabel:      c.Status.Label(),
		Version:          c.Version,
		Archived:         c.ArchivedAt != nil,
		CreatedBy:        c.CreatedBy,
		UpdatedBy:        c.UpdatedBy,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func newContractViews(items []core.Contract) []contractView {
	out := make([]contractView, 0, len(items))
	for _, c := range items {
		out = append(out, newContractView(c))
	}
	return out
}

func newInstallmentView(i core.Installment) installmentView {
	return installmentView{
		ID:           i.ID,
		ContractCode: i.ContractCode,
		Sequence:     i.Sequence,
		DueDate:      i.DueDate,
		FaceValue:    i.FaceValue,
		AmountPaid:   i.AmountPaid,
		Balance:      i.Balance(),
		PaymentDate:  i.PaymentDate,
		Notes:        i.Notes,
		Status:       string(i.Status),
		StatusLabel:  i.Status.Label(),
	}
}

func newInstallmentViews(items []core.Installment) []installmentView {
	out := make([]installmentView, 0, len(items))
	for _, i := range items {
		out = append(out, newInstallmentView(i))
	}
	return out
}

func newPaymentViews(items []core.Payment) []paymentView {
	out := make([]paymentView, 0, len(items))
	for _, p := range items {
		out = append(out, paymentView(p))
	}
	return out
}

func newContractDetailView(d services.ContractDetail) contractDetailView {
	v := contractDetailView{
		Contract:     newContractView(d.Contract),
		Installments: newInstallmentViews(d.Installments),
		PercentPaid:  d.PercentPaid,
		HasOverdue:   d.HasOverdue,
	}
	if d.NextDue != nil {
		next := newInstallmentView(*d.NextDue)
		v.NextDue = &next
	}
	return v
}

func newAgingView(r core.AgingReport) agingView {
	v := agingView{
		AsOf:    r.AsOf,
		Buckets: make([]agingBucketView, 0, len(r.Buckets)),
		Items:   make([]agingItemView, 0, len(r.Items)),
		Total:   r.Total,
	}
	for _, b := range r.Buckets {
		v.Buckets = append(v.Buckets, agingBucketView(b))
	}
	for _, it := range r.Items {
		v.Items = append(v.Items, agingItemView{
			Installment: newInstallmentView(it.Installment),
			DaysOverdue: it.DaysOverdue,
			Bucket:      it.Bucket,
		})
	}
	return v
}

func newNotificationViews(items []core.Notification) []notificationView {
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView(n))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeRetryAfter(w http.ResponseWriter, seconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}

// writeError maps ledger errors to status codes. Anything unrecognised is a
// 500 and its message is not echoed back.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		body   = errorBody{Error: "internal error", Code: "internal"}

		verrs    validator.ValidationErrors
		exceeds  *core.AmountExceedsBalanceError
		tooLarge *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verrs):
		status = http.StatusUnprocessableEntity
		body = errorBody{Error: "validation failed", Code: "validation", Fields: make(map[string]string, len(verrs))}
		for _, fe := range verrs {
			body.Fields[fe.Field()] = fe.Tag()
		}
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
		body = errorBody{Error: "request body too large", Code: "too_large"}
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
		body = errorBody{Error: err.Error(), Code: "bad_request"}
	case errors.As(err, &exceeds):
		status = http.StatusUnprocessableEntity
		remaining := exceeds.Remaining
		body = errorBody{Error: err.Error(), Code: "amount_exceeds_balance", Remaining: &remaining}
	case errors.Is(err, core.ErrInstallmentNotPayable):
		status = http.StatusUnprocessableEntity
		body = errorBody{Error: err.Error(), Code: "installment_not_payable"}
	case errors.Is(err, core.ErrInvalidAmount):
		status = http.StatusUnprocessableEntity
		body = errorBody{Error: err.Error(), Code: "invalid_amount"}
	case core.IsValidation(err):
		status = http.StatusUnprocessableEntity
		body = errorBody{Error: err.Error(), Code: "validation"}
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		body = errorBody{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, core.ErrConcurrentModification):
		status = http.StatusConflict
		body = errorBody{Error: err.Error(), Code: "conflict"}
		writeRetryAfter(w, retryAfterConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		body = errorBody{Error: "request cancelled", Code: "unavailable"}
	}

	if status >= 500 {
		fields := log.NewFields().
			WithError(err).
			WithErrorType(log.ErrorTypeInternal).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent())
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	}
	writeJSON(w, status, body)
}
