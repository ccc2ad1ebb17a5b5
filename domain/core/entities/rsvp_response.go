package entities

import (
	"time"

	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
)

// Submission channels recorded on each response.
const (
	ChannelWeb    = "web"
	ChannelAdmin  = "admin"
	ChannelImport = "import"
)

// RSVPResponse is an immutable history record of one submission. A guest's
// current state is the record with the greatest SubmittedAt.
type RSVPResponse struct {
	PK         string `dynamodbav:"PK" json:"-"`
	SK         string `dynamodbav:"SK" json:"-"`
	EntityType string `dynamodbav:"EntityType" json:"-"`

	ResponseID     string                  `dynamodbav:"ResponseID" json:"rsvpId"`
	EventID        string                  `dynamodbav:"EventID" json:"eventId"`
	Email          string                  `dynamodbav:"Email" json:"email"`
	GuestName      string                  `dynamodbav:"GuestName" json:"guestName"`
	InvitationCode string                  `dynamodbav:"InvitationCode,omitempty" json:"invitationCode,omitempty"`
	GroupID        string                  `dynamodbav:"GroupID,omitempty" json:"groupId,omitempty"`
	Status         valueobjects.RSVPStatus `dynamodbav:"Status" json:"status"`
	PartySize      int                     `dynamodbav:"PartySize" json:"partySize"`

	// Attendees are the named plus-ones; the invitee is implicit.
	Attendees           []Attendee `dynamodbav:"Attendees,omitempty" json:"attendees,omitempty"`
	DietaryRestrictions []string   `dynamodbav:"DietaryRestrictions,omitempty" json:"dietaryRestrictions,omitempty"`
	DietaryNotes        string     `dynamodbav:"DietaryNotes,omitempty" json:"dietaryNotes,omitempty"`
	SpecialRequests     string     `dynamodbav:"SpecialRequests,omitempty" json:"specialRequests,omitempty"`

	Channel        string            `dynamodbav:"Channel" json:"channel"`
	ClientMetadata map[string]string `dynamodbav:"ClientMetadata,omitempty" json:"clientMetadata,omitempty"`

	// SubmittedAt is kept in keys.TimestampLayout. Readers must tolerate
	// malformed values, see SubmittedTime.
	SubmittedAt string `dynamodbav:"SubmittedAt" json:"submittedAt"`
}

// NewRSVPResponse builds a history record with its key derived.
func NewRSVPResponse(eventID, email, responseID string, status valueobjects.RSVPStatus, submittedAt time.Time) *RSVPResponse {
	r := &RSVPResponse{
		ResponseID:  responseID,
		EventID:     eventID,
		Email:       valueobjects.NormalizeEmail(email),
		Status:      status,
		SubmittedAt: keys.FormatTimestamp(submittedAt),
	}
	r.DeriveKeys()
	return r
}

// DeriveKeys sets the primary key from the event, email and timestamp.
func (r *RSVPResponse) DeriveKeys() {
	r.PK = keys.EventPK(r.EventID)
	r.SK = keys.RSVPSK(r.Email, r.SubmittedTime(), r.ResponseID)
	r.EntityType = keys.EntityRSVPResponse
}

// Key returns the primary key of the record.
func (r *RSVPResponse) Key() keys.Key {
	return keys.Key{PK: r.PK, SK: r.SK}
}

// SubmittedTime parses SubmittedAt. Missing or malformed values yield the
// zero epoch so they never win a latest-response comparison.
func (r *RSVPResponse) SubmittedTime() time.Time {
	t, err := r.ParseSubmittedAt()
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// ParseSubmittedAt parses SubmittedAt, reporting malformed values.
func (r *RSVPResponse) ParseSubmittedAt() (time.Time, error) {
	return keys.ParseTimestamp(r.SubmittedAt)
}

// PartyDietaryRestrictions is the union of the invitee's and every attendee's restrictions.
func (r *RSVPResponse) PartyDietaryRestrictions() []string {
	groups := [][]string{NormalizeRestrictions(r.DietaryRestrictions)}
	for _, a := range r.Attendees {
		groups = append(groups, NormalizeRestrictions(a.DietaryRestrictions))
	}
	return uniqueStrings(groups...)
}

// Newer reports whether r should win over other as the latest response.
func (r *RSVPResponse) Newer(other *RSVPResponse) bool {
	if other == nil {
		return true
	}
	a, b := r.SubmittedTime(), other.SubmittedTime()
	if a.Equal(b) {
		return r.ResponseID > other.ResponseID
	}
	return a.After(b)
}
