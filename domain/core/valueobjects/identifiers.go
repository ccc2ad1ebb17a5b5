package valueobjects

import (
	"regexp"
	"strings"

	pkgerrors "wedding-backend/pkg/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ParseEventID validates an event identifier. Identifiers never contain the
// key separator so composite keys stay unambiguous.
func ParseEventID(raw string) (string, error) {
	return parseIdentifier("event id", raw)
}

// ParseGroupID validates a group identifier.
func ParseGroupID(raw string) (string, error) {
	return parseIdentifier("group id", raw)
}

func parseIdentifier(name, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if !identifierPattern.MatchString(id) {
		return "", pkgerrors.NewValidationError(name + " must be 1-64 letters, digits, dashes or underscores")
	}
	return id, nil
}
