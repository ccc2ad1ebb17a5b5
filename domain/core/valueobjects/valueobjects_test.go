package valueobjects

import (
	"regexp"
	"testing"

	pkgerrors "wedding-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "mixed case is canonicalized", input: "Jane.Doe@Example.com", want: "jane.doe@example.com"},
		{name: "whitespace trimmed", input: "  bob@example.com\t", want: "bob@example.com"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "missing domain", input: "bob@", wantErr: true},
		{name: "missing local part", input: "@example.com", wantErr: true},
		{name: "separator in domain", input: "bob@exa#mple.com", wantErr: true},
		{name: "inner whitespace", input: "bob smith@example.com", wantErr: true},
		{name: "no at sign", input: "bob.example.com", wantErr: true},
		{name: "plus addressing", input: "Bob+Wedding@Example.com", want: "bob+wedding@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEmail(tt.input)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRSVPStatus(t *testing.T) {
	for raw, want := range map[string]RSVPStatus{
		"Attending":     StatusAttending,
		"not-attending": StatusNotAttending,
		"NOT_ATTENDING": StatusNotAttending,
		" maybe ":       StatusMaybe,
		"declined":      StatusNotAttending,
	} {
		got, err := ParseRSVPStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseRSVPStatus("perhaps")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDeriveGroupStatus(t *testing.T) {
	assert.Equal(t, GroupPending, DeriveGroupStatus(nil))
	assert.Equal(t, GroupPending, DeriveGroupStatus([]RSVPStatus{StatusPending, StatusPending}))
	assert.Equal(t, GroupPartial, DeriveGroupStatus([]RSVPStatus{StatusAttending, StatusPending, StatusPending}))
	assert.Equal(t, GroupComplete, DeriveGroupStatus([]RSVPStatus{StatusAttending, StatusNotAttending, StatusMaybe}))
}

func TestInvitationCodes(t *testing.T) {
	code, err := ParseInvitationCode(" abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)

	_, err = ParseInvitationCode("AB")
	assert.Error(t, err)
	_, err = ParseInvitationCode("ABC-123")
	assert.Error(t, err)

	generated, err := GenerateInvitationCode(3, 3)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z]{3}[0-9]{3}$`), generated)
	_, err = ParseInvitationCode(generated)
	assert.NoError(t, err)
}

func TestParseEventID(t *testing.T) {
	_, err := ParseEventID("wedding-2025")
	assert.NoError(t, err)
	_, err = ParseEventID("bad#id")
	assert.Error(t, err)
	_, err = ParseGroupID("")
	assert.Error(t, err)
}
