package config

import "time"

// DomainConfig holds the configurable business rules for RSVP handling.
type DomainConfig struct {
	// Party constraints
	MaxPartySize        int // hard ceiling regardless of a guest's own allowance
	DefaultGuestAllowed int // allowance given to imported guests without one
	MaxAttendees        int
	MaxNotesLength      int

	// Invitation constraints
	DefaultInvitationMaxUses int
	InvitationCodeLetters    int
	InvitationCodeDigits     int
	CodeGenerationAttempts   int

	// Write concurrency
	MaxWriteRetries int
	RetryBaseDelay  time.Duration

	// Notification dedupe window
	IdempotencyTTL time.Duration

	// Submissions after the event deadline are rejected unless made by an admin.
	EnforceRSVPDeadline bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxPartySize:        10,
		DefaultGuestAllowed: 2,
		MaxAttendees:        20,
		MaxNotesLength:      2000,

		DefaultInvitationMaxUses: 5,
		InvitationCodeLetters:    3,
		InvitationCodeDigits:     3,
		CodeGenerationAttempts:   10,

		MaxWriteRetries: 3,
		RetryBaseDelay:  100 * time.Millisecond,

		IdempotencyTTL: 7 * 24 * time.Hour,

		EnforceRSVPDeadline: true,
	}
}
