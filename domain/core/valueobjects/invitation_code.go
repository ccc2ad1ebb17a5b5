package valueobjects

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"

	pkgerrors "wedding-backend/pkg/errors"
)

var invitationCodePattern = regexp.MustCompile(`^[A-Z0-9]{4,16}$`)

// NormalizeInvitationCode trims whitespace and uppercases. Uppercase is the
// single stored convention.
func NormalizeInvitationCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParseInvitationCode normalizes raw and checks the stored code format.
func ParseInvitationCode(raw string) (string, error) {
	code := NormalizeInvitationCode(raw)
	if code == "" {
		return "", pkgerrors.NewValidationError("invitation code is required")
	}
	if !invitationCodePattern.MatchString(code) {
		return "", pkgerrors.NewValidationError("invitation code must be 4-16 letters or digits")
	}
	return code, nil
}

const (
	codeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ" // no I or O
	codeDigits  = "23456789"                 // no 0 or 1
)

// GenerateInvitationCode returns a random code of the given number of letters
// followed by digits, e.g. "KTW482". Uniqueness is the caller's concern.
func GenerateInvitationCode(letters, digits int) (string, error) {
	var sb strings.Builder
	for i := 0; i < letters+digits; i++ {
		alphabet := codeLetters
		if i >= letters {
			alphabet = codeDigits
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}
