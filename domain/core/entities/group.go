package entities

import (
	"time"

	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
)

// GuestGroup is a family or party sharing an invitation context. Its
// aggregate fields are a derived cache over the member guest rows.
type GuestGroup struct {
	PK         string `dynamodbav:"PK" json:"-"`
	SK         string `dynamodbav:"SK" json:"-"`
	EntityType string `dynamodbav:"EntityType" json:"-"`

	GroupID        string   `dynamodbav:"GroupID" json:"groupId"`
	EventID        string   `dynamodbav:"EventID" json:"eventId"`
	Name           string   `dynamodbav:"Name" json:"name"`
	PrimaryContact string   `dynamodbav:"PrimaryContact,omitempty" json:"primaryContact,omitempty"`
	MemberEmails   []string `dynamodbav:"MemberEmails" json:"memberEmails"`
	MaxPartySize   int      `dynamodbav:"MaxPartySize" json:"maxPartySize"`

	GroupAggregate

	CreatedAt time.Time `dynamodbav:"CreatedAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"UpdatedAt" json:"updatedAt"`
	Version   int       `dynamodbav:"Version" json:"version"`
}

// GroupAggregate holds the recomputed fields of a group.
type GroupAggregate struct {
	GroupRSVPStatus  valueobjects.GroupStatus `dynamodbav:"GroupRSVPStatus" json:"groupRsvpStatus"`
	CurrentPartySize int                      `dynamodbav:"CurrentPartySize" json:"currentPartySize"`
	RespondedCount   int                      `dynamodbav:"RespondedCount" json:"respondedCount"`
	AttendingCount   int                      `dynamodbav:"AttendingCount" json:"attendingCount"`
}

// Patch returns the aggregate as an update patch.
func (a GroupAggregate) Patch() map[string]interface{} {
	return map[string]interface{}{
		"GroupRSVPStatus":  a.GroupRSVPStatus,
		"CurrentPartySize": a.CurrentPartySize,
		"RespondedCount":   a.RespondedCount,
		"AttendingCount":   a.AttendingCount,
	}
}

// ComputeGroupAggregate folds member rows into a group aggregate. Members
// appearing in memberEmails but missing from guests count as pending.
func ComputeGroupAggregate(memberEmails []string, guests []*Guest) GroupAggregate {
	byEmail := make(map[string]*Guest, len(guests))
	for _, g := range guests {
		byEmail[g.Email] = g
	}
	var agg GroupAggregate
	statuses := make([]valueobjects.RSVPStatus, 0, len(memberEmails))
	for _, email := range memberEmails {
		g, ok := byEmail[valueobjects.NormalizeEmail(email)]
		if !ok {
			statuses = append(statuses, valueobjects.StatusPending)
			continue
		}
		statuses = append(statuses, g.RSVPStatus)
		if g.RSVPStatus.Responded() {
			agg.RespondedCount++
		}
		if g.RSVPStatus == valueobjects.StatusAttending {
			agg.AttendingCount++
			agg.CurrentPartySize += g.PartySize
		}
	}
	agg.GroupRSVPStatus = valueobjects.DeriveGroupStatus(statuses)
	return agg
}

// NewGuestGroup creates an empty pending group.
func NewGuestGroup(eventID, groupID, name string, now time.Time) *GuestGroup {
	g := &GuestGroup{
		GroupID:        groupID,
		EventID:        eventID,
		Name:           name,
		GroupAggregate: GroupAggregate{GroupRSVPStatus: valueobjects.GroupPending},
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	g.DeriveKeys()
	return g
}

// DeriveKeys sets the primary key and canonicalizes member emails.
func (g *GuestGroup) DeriveKeys() {
	k := g.Key()
	g.PK, g.SK, g.EntityType = k.PK, k.SK, keys.EntityGroup
	members := make([]string, 0, len(g.MemberEmails))
	for _, m := range g.MemberEmails {
		members = append(members, valueobjects.NormalizeEmail(m))
	}
	g.MemberEmails = uniqueStrings(members)
	g.PrimaryContact = valueobjects.NormalizeEmail(g.PrimaryContact)
}

// Key returns the primary key of the group row.
func (g *GuestGroup) Key() keys.Key {
	return keys.GroupKey(g.EventID, g.GroupID)
}

// AddMember appends email if it is not already a member.
func (g *GuestGroup) AddMember(email string) {
	g.MemberEmails = append(g.MemberEmails, email)
	g.DeriveKeys()
}
