package valueobjects

import (
	"strings"

	pkgerrors "wedding-backend/pkg/errors"
	"wedding-backend/pkg/utils"
)

// NormalizeEmail returns the canonical form used for keys and comparisons.
// Two addresses differing only in case or surrounding whitespace are the same guest.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseEmail normalizes raw and validates it as an email address.
func ParseEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if err := utils.ValidateVar("email", email, "required,email"); err != nil {
		return "", err
	}
	// '#' separates key segments
	if at := strings.LastIndex(email, "@"); strings.Contains(email[at+1:], "#") {
		return "", pkgerrors.NewValidationError("email contains invalid characters")
	}
	return email, nil
}
