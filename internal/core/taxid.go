package core

import (
	"fmt"
	"strings"
)

// PersonType tells an individual (CPF, 11 digits) from an organization (CNPJ, 14 digits).
type PersonType string

const (
	Individual   PersonType = "individual"
	Organization PersonType = "organization"
)

// NormalizeTaxID strips the usual CPF/CNPJ punctuation and returns the
// digits together with the person type they identify.
func NormalizeTaxID(raw string) (string, PersonType, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '/' || r == ' ':
		default:
			return "", "", fmt.Errorf("%w: unexpected character %q", ErrInvalidTaxID, r)
		}
	}
	digits := b.String()
	switch len(digits) {
	case 11:
		return digits, Individual, nil
	case 14:
		return digits, Organization, nil
	default:
		return "", "", fmt.Errorf("%w: expected 11 or 14 digits, got %d", ErrInvalidTaxID, len(digits))
	}
}

// FormatTaxID renders normalized digits as 000.000.000-00 or 00.000.000/0000-00.
func FormatTaxID(digits string) string {
	switch len(digits) {
	case 11:
		return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
	case 14:
		return digits[0:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:]
	default:
		return digits
	}
}
