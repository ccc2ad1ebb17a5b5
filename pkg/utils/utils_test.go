package utils

import (
	"testing"
	"time"

	pkgerrors "wedding-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Code   string `validate:"required,min=4,max=16"`
	Status string `validate:"oneof=attending not_attending"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Code: "ABC123", Status: "attending"}))

	err := ValidateStruct(sample{Status: "soon"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	appErr := pkgerrors.GetAppError(err)
	assert.Contains(t, appErr.Message, "code is required")
	assert.Contains(t, appErr.Details, "status")
}

func TestValidateVar(t *testing.T) {
	require.NoError(t, ValidateVar("email", "jane@example.com", "required,email"))

	err := ValidateVar("email", "jane at example", "required,email")
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "email must be a valid email", appErr.Message)
	assert.Contains(t, appErr.Details, "email")

	err = ValidateVar("email", "", "required,email")
	assert.Equal(t, "email is required", pkgerrors.GetAppError(err).Message)
}

func TestParseOptionalTime(t *testing.T) {
	zero, err := ParseOptionalTime("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	day, err := ParseOptionalTime("2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), day)

	ts, err := ParseOptionalTime("2025-06-14T15:04:05.5+02:00")
	require.NoError(t, err)
	assert.Equal(t, 13, ts.Hour())

	_, err = ParseOptionalTime("next week")
	assert.Error(t, err)
}
