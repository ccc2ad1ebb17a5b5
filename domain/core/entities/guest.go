package entities

import (
	"time"

	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
)

// Guest is one invited person of an event. Its status fields are a projection
// of the guest's latest RSVP response.
type Guest struct {
	PK         string `dynamodbav:"PK" json:"-"`
	SK         string `dynamodbav:"SK" json:"-"`
	EntityType string `dynamodbav:"EntityType" json:"-"`

	// Index shadow attributes, always derived by DeriveKeys.
	GSI1PK string `dynamodbav:"GSI1PK,omitempty" json:"-"`
	GSI1SK string `dynamodbav:"GSI1SK,omitempty" json:"-"`
	GSI2PK string `dynamodbav:"GSI2PK,omitempty" json:"-"`
	GSI2SK string `dynamodbav:"GSI2SK,omitempty" json:"-"`
	GSI3PK string `dynamodbav:"GSI3PK,omitempty" json:"-"`
	GSI3SK string `dynamodbav:"GSI3SK,omitempty" json:"-"`

	EventID string `dynamodbav:"EventID" json:"eventId"`
	Email   string `dynamodbav:"Email" json:"email"`
	Name    string `dynamodbav:"Name" json:"name"`
	Phone   string `dynamodbav:"Phone,omitempty" json:"phone,omitempty"`

	RSVPStatus          valueobjects.RSVPStatus `dynamodbav:"RSVPStatus" json:"rsvpStatus"`
	PlusOnesCount       int                     `dynamodbav:"PlusOnesCount" json:"plusOnesCount"`
	PartySize           int                     `dynamodbav:"PartySize" json:"partySize"`
	MaxPartySize        int                     `dynamodbav:"MaxPartySize" json:"maxGuests"`
	Attendees           []Attendee              `dynamodbav:"Attendees,omitempty" json:"attendees,omitempty"`
	DietaryRestrictions []string                `dynamodbav:"DietaryRestrictions,omitempty" json:"dietaryRestrictions,omitempty"`
	DietaryNotes        string                  `dynamodbav:"DietaryNotes,omitempty" json:"dietaryNotes,omitempty"`
	SpecialRequests     string                  `dynamodbav:"SpecialRequests,omitempty" json:"specialRequests,omitempty"`

	InvitationCode     string     `dynamodbav:"InvitationCode" json:"invitationCode"`
	InvitationSentAt   *time.Time `dynamodbav:"InvitationSentAt,omitempty" json:"invitationSentAt,omitempty"`
	InvitationViewedAt *time.Time `dynamodbav:"InvitationViewedAt,omitempty" json:"invitationViewedAt,omitempty"`

	GroupID          string `dynamodbav:"GroupID,omitempty" json:"groupId,omitempty"`
	IsPrimaryContact bool   `dynamodbav:"IsPrimaryContact" json:"isPrimaryContact"`
	TableAssignment  string `dynamodbav:"TableAssignment,omitempty" json:"tableAssignment,omitempty"`
	Notes            string `dynamodbav:"Notes,omitempty" json:"notes,omitempty"`

	LastResponseID string     `dynamodbav:"LastResponseID,omitempty" json:"lastResponseId,omitempty"`
	LastResponseAt *time.Time `dynamodbav:"LastResponseAt,omitempty" json:"respondedAt,omitempty"`

	CreatedAt time.Time `dynamodbav:"CreatedAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"UpdatedAt" json:"updatedAt"`
	Version   int       `dynamodbav:"Version" json:"version"`
}

// NewGuest creates a pending guest with canonical identifiers and derived keys.
func NewGuest(eventID, email, name, code string, maxPartySize int, now time.Time) *Guest {
	g := &Guest{
		EventID:        eventID,
		Email:          valueobjects.NormalizeEmail(email),
		Name:           name,
		RSVPStatus:     valueobjects.StatusPending,
		MaxPartySize:   maxPartySize,
		InvitationCode: valueobjects.NormalizeInvitationCode(code),
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	g.DeriveKeys()
	return g
}

// Key returns the primary key of the guest row.
func (g *Guest) Key() keys.Key {
	return keys.GuestKey(g.EventID, g.Email)
}

// DeriveKeys recomputes the primary key and every index shadow attribute from
// the current field values. Call it after any mutation that is about to be written.
func (g *Guest) DeriveKeys() {
	g.Email = valueobjects.NormalizeEmail(g.Email)
	g.InvitationCode = valueobjects.NormalizeInvitationCode(g.InvitationCode)
	if g.RSVPStatus == "" {
		g.RSVPStatus = valueobjects.StatusPending
	}
	k := g.Key()
	g.PK, g.SK, g.EntityType = k.PK, k.SK, keys.EntityGuest

	g.GSI1PK, g.GSI1SK = "", ""
	if g.InvitationCode != "" {
		g.GSI1PK = keys.InvitationPK(g.InvitationCode)
		g.GSI1SK = k.SK
	}

	g.GSI2PK = keys.StatusBucket(g.EventID, g.RSVPStatus)
	g.GSI2SK = k.SK

	g.GSI3PK, g.GSI3SK = "", ""
	if g.RSVPStatus.Responded() && g.LastResponseAt != nil {
		g.GSI3PK = keys.AdminBucket(g.EventID)
		g.GSI3SK = keys.AdminDateSK(*g.LastResponseAt, g.RSVPStatus, g.Email)
	}
}

// ShadowAttributes returns the derived index attributes as an update patch.
// Absent attributes map to nil so that the update removes them.
func (g *Guest) ShadowAttributes() map[string]interface{} {
	patch := map[string]interface{}{}
	for name, v := range map[string]string{
		"GSI1PK": g.GSI1PK, "GSI1SK": g.GSI1SK,
		"GSI2PK": g.GSI2PK, "GSI2SK": g.GSI2SK,
		"GSI3PK": g.GSI3PK, "GSI3SK": g.GSI3SK,
	} {
		if v == "" {
			patch[name] = nil
		} else {
			patch[name] = v
		}
	}
	return patch
}

// Supersedes reports whether r is newer than the response the guest currently
// reflects. Ties on timestamp are broken by response id so every replica of
// the comparison picks the same winner.
func (g *Guest) Supersedes(r *RSVPResponse) bool {
	if g.LastResponseAt == nil {
		return true
	}
	at := r.SubmittedTime()
	if at.After(*g.LastResponseAt) {
		return true
	}
	return at.Equal(*g.LastResponseAt) && r.ResponseID > g.LastResponseID
}

// ApplyResponse projects r onto the guest's current-state fields and derives
// the index attributes in the same step.
func (g *Guest) ApplyResponse(r *RSVPResponse, now time.Time) {
	at := r.SubmittedTime()
	g.RSVPStatus = r.Status
	g.PartySize = r.PartySize
	g.PlusOnesCount = len(r.Attendees)
	if r.Status == valueobjects.StatusNotAttending {
		g.PlusOnesCount = 0
	}
	g.Attendees = r.Attendees
	g.DietaryRestrictions = r.PartyDietaryRestrictions()
	g.DietaryNotes = r.DietaryNotes
	g.SpecialRequests = r.SpecialRequests
	g.LastResponseID = r.ResponseID
	g.LastResponseAt = &at
	if g.InvitationViewedAt == nil {
		viewed := now.UTC()
		g.InvitationViewedAt = &viewed
	}
	g.UpdatedAt = now.UTC()
	g.DeriveKeys()
}

// CurrentStatePatch returns every attribute ApplyResponse touches, as one
// update. Status and index attributes are always written together.
func (g *Guest) CurrentStatePatch() map[string]interface{} {
	patch := g.ShadowAttributes()
	patch["RSVPStatus"] = g.RSVPStatus
	patch["PlusOnesCount"] = g.PlusOnesCount
	patch["PartySize"] = g.PartySize
	patch["Attendees"] = nilIfEmpty(g.Attendees)
	patch["DietaryRestrictions"] = nilIfEmptyStrings(g.DietaryRestrictions)
	patch["DietaryNotes"] = nilIfBlank(g.DietaryNotes)
	patch["SpecialRequests"] = nilIfBlank(g.SpecialRequests)
	patch["LastResponseID"] = g.LastResponseID
	patch["LastResponseAt"] = g.LastResponseAt
	patch["InvitationViewedAt"] = g.InvitationViewedAt
	patch["UpdatedAt"] = g.UpdatedAt
	return patch
}

func nilIfEmpty(a []Attendee) interface{} {
	if len(a) == 0 {
		return nil
	}
	return a
}

func nilIfEmptyStrings(s []string) interface{} {
	if len(s) == 0 {
		return nil
	}
	return s
}

func nilIfBlank(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
