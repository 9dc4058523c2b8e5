package address

import (
	"strings"
	"unicode"

	"github.com/martxmartindia/checkout/internal/domain"
)

// FieldError ties a validation failure to the offending field so the client
// can render it inline.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate runs the structural rules over an address. It never touches the
// network; a non-empty result means the address must not be saved.
func Validate(addr *domain.Address) []FieldError {
	var errs []FieldError

	if len(strings.TrimSpace(addr.ContactName)) < 2 {
		errs = append(errs, FieldError{"contact_name", "contact name must be at least 2 characters"})
	}
	if digitCount(addr.Phone) < 10 {
		errs = append(errs, FieldError{"phone", "phone must contain at least 10 digits"})
	}
	if len(strings.TrimSpace(addr.AddressLine1)) < 5 {
		errs = append(errs, FieldError{"address_line1", "address line 1 must be at least 5 characters"})
	}
	if len(strings.TrimSpace(addr.City)) < 2 {
		errs = append(errs, FieldError{"city", "city must be at least 2 characters"})
	}
	if len(strings.TrimSpace(addr.State)) < 2 {
		errs = append(errs, FieldError{"state", "state must be at least 2 characters"})
	}
	if !isSixDigitZip(addr.Zip) {
		errs = append(errs, FieldError{"zip", "zip must be exactly 6 digits"})
	}
	if !addr.Type.Valid() {
		errs = append(errs, FieldError{"type", "type must be BILLING or DISPATCH"})
	}

	return errs
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func isSixDigitZip(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
