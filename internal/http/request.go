package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"funetec/internal/core"
)

const (
	headerActor     = "X-Actor"
	headerActorName = "X-Actor-Name"
	maxBodyBytes    = 1 << 20
)

var errBadRequest = errors.New("bad request")

type createContractRequest struct {
	Counterparty     string     `json:"counterparty" validate:"required,max=200"`
	TaxID            string     `json:"tax_id" validate:"required,max=18"`
	Description      string     `json:"description" validate:"max=2000"`
	Total            core.Money `json:"total" validate:"gt=0"`
	StartDate        core.Date  `json:"start_date" validate:"required"`
	EndDate          core.Date  `json:"end_date" validate:"required"`
	InstallmentCount int        `json:"installment_count" validate:"min=1,max=360"`
	FirstDueDate     core.Date  `json:"first_due_date" validate:"required"`
}

func (r createContractRequest) toNewContract() core.NewContract {
	return core.NewContract{
		Counterparty:     r.Counterparty,
		TaxID:            r.TaxID,
		Description:      r.Description,
		Total:            r.Total,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		InstallmentCount: r.InstallmentCount,
		FirstDueDate:     r.FirstDueDate,
	}
}

type paymentRequest struct {
	Amount core.Money `json:"amount"`
	PaidOn core.Date  `json:"paid_on"`
	Note   string     `json:"note" validate:"max=500"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type appendInstallmentRequest struct {
	FaceValue core.Money `json:"face_value" validate:"gt=0"`
	DueDate   core.Date  `json:"due_date" validate:"required"`
	Note      string     `json:"note" validate:"max=500"`
}

type payBatchRequest struct {
	IDs    []int64   `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
	PaidOn core.Date `json:"paid_on"`
}

type postponeRequest struct {
	IDs  []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
	Days int     `json:"days" validate:"min=1,max=3650"`
}

// requestValidator validates request bodies. Money is checked by its cents
// and Date by its YYYY-MM-DD form, so the usual tags apply to both.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		return f.Interface().(core.Money).Cents
	}, core.Money{})
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		return f.Interface().(core.Date).String()
	}, core.Date{})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Struct(s any) error {
	return rv.v.Struct(s)
}

// decodeJSON reads one JSON object into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		// an empty body is an empty object
		return s.validate.Struct(dst)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.Is(err, core.ErrInvalidAmount) || errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must hold a single JSON object", errBadRequest)
	}
	return s.validate.Struct(dst)
}

// actorFrom reads the acting user from the request headers. A missing id is
// rejected by the ledger itself.
func actorFrom(r *http.Request) core.Actor {
	return core.Actor{
		ID:   sanitizeInput(r.Header.Get(headerActor)),
		Name: sanitizeInput(r.Header.Get(headerActorName)),
	}
}

// contractCode rebuilds "NNNN/YYYY" from the {year}/{seq} path segments.
func contractCode(r *http.Request) (string, error) {
	code, err := core.ParseContractCode(r.PathValue("seq") + "/" + r.PathValue("year"))
	if err != nil {
		return "", err
	}
	return code.String(), nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

// queryDate parses a YYYY-MM-DD query parameter, falling back to def when
// it is absent.
func queryDate(r *http.Request, key string, def core.Date) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		if def.IsZero() {
			return core.Date{}, fmt.Errorf("%w: %s is required", core.ErrInvalidDateRange, key)
		}
		return def, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", core.ErrInvalidDateRange, key)
	}
	return d, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func queryInt(r *http.Request, key string, def int) int {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
