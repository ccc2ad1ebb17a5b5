// Package keys maps logical entities onto the single-table key layout.
//
// Every function here is pure. Builders canonicalize their inputs (emails are
// trimmed and lowercased, invitation codes uppercased) so that two spellings
// of the same identity always land on the same physical key, and each parser
// is the left inverse of its builder for keys the builders produce.
package keys

import (
	"fmt"
	"strings"
	"time"

	"wedding-backend/domain/core/valueobjects"
)

const (
	sep = "#"

	prefixEvent     = "EVENT#"
	prefixGuest     = "GUEST#"
	prefixRSVP      = "RSVP#"
	prefixGroup     = "GROUP#"
	prefixInvite    = "INVITE#"
	prefixStatus    = "STATUS#"
	prefixAdmin     = "ADMIN#"
	prefixResponded = "RESPONDED#"

	// SortMetadata is the sort key of single-row entities (events, invitations).
	SortMetadata = "METADATA"
	// SortInvitation marks the invitation row inside the invitation index.
	SortInvitation = "INVITATION"

	// TimestampLayout is fixed width so lexicographic order equals time order.
	TimestampLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout      = "2006-01-02"
)

// Entity type discriminators stored in EntityType.
const (
	EntityEvent        = "EVENT"
	EntityGuest        = "GUEST"
	EntityRSVPResponse = "RSVP_RESPONSE"
	EntityInvitation   = "INVITATION"
	EntityGroup        = "GROUP"
)

// Attribute names shared by every row.
const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrEntityType = "EntityType"
	AttrVersion    = "Version"
)

// Key is a physical primary key.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string { return k.PK + "|" + k.SK }

// Index describes a secondary index by the attributes it is keyed on.
type Index struct {
	Name          string
	PartitionAttr string
	SortAttr      string
}

var (
	// InvitationIndex resolves a code to its invitation row and guest row.
	InvitationIndex = Index{Name: "InvitationIndex", PartitionAttr: "GSI1PK", SortAttr: "GSI1SK"}
	// StatusIndex buckets guests by event and current status.
	StatusIndex = Index{Name: "StatusIndex", PartitionAttr: "GSI2PK", SortAttr: "GSI2SK"}
	// AdminDateIndex orders responded guests by response date.
	AdminDateIndex = Index{Name: "AdminDateIndex", PartitionAttr: "GSI3PK", SortAttr: "GSI3SK"}
)

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses TimestampLayout, falling back to RFC3339 for values
// written by older tooling.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// EventPK builds the partition key shared by an event and all its rows.
func EventPK(eventID string) string {
	return prefixEvent + strings.TrimSpace(eventID)
}

// ParseEventPK returns the event id of an event partition key.
func ParseEventPK(pk string) (string, error) {
	return trimPrefix(pk, prefixEvent, "event partition key")
}

// EventKey is the key of an event's metadata row.
func EventKey(eventID string) Key {
	return Key{PK: EventPK(eventID), SK: SortMetadata}
}

// GuestSK builds a guest sort key from a (possibly non-canonical) email.
func GuestSK(email string) string {
	return prefixGuest + valueobjects.NormalizeEmail(email)
}

// ParseGuestSK returns the canonical email in a guest sort key.
func ParseGuestSK(sk string) (string, error) {
	return trimPrefix(sk, prefixGuest, "guest sort key")
}

// GuestKey is the key of a guest row.
func GuestKey(eventID, email string) Key {
	return Key{PK: EventPK(eventID), SK: GuestSK(email)}
}

// GuestPrefix selects every guest row in an event partition.
func GuestPrefix() string { return prefixGuest }

// RSVPKey identifies one history record.
type RSVPKey struct {
	Email       string
	SubmittedAt time.Time
	ResponseID  string
}

// RSVPSK builds a history sort key. Records of one guest share RSVPPrefix and
// sort by submission time within it.
func RSVPSK(email string, submittedAt time.Time, responseID string) string {
	return RSVPPrefix(email) + FormatTimestamp(submittedAt) + sep + responseID
}

// RSVPPrefix selects every history record of one guest.
func RSVPPrefix(email string) string {
	return prefixRSVP + valueobjects.NormalizeEmail(email) + sep
}

// RSVPAllPrefix selects every history record in an event partition.
func RSVPAllPrefix() string { return prefixRSVP }

// ParseRSVPSK splits from the right so emails containing the separator
// still decode to the original address.
func ParseRSVPSK(sk string) (RSVPKey, error) {
	rest, err := trimPrefix(sk, prefixRSVP, "rsvp sort key")
	if err != nil {
		return RSVPKey{}, err
	}
	idSep := strings.LastIndex(rest, sep)
	if idSep < 0 {
		return RSVPKey{}, fmt.Errorf("malformed rsvp sort key %q", sk)
	}
	responseID := rest[idSep+1:]
	rest = rest[:idSep]
	tsSep := strings.LastIndex(rest, sep)
	if tsSep <= 0 || responseID == "" {
		return RSVPKey{}, fmt.Errorf("malformed rsvp sort key %q", sk)
	}
	ts, err := time.Parse(TimestampLayout, rest[tsSep+1:])
	if err != nil {
		return RSVPKey{}, fmt.Errorf("malformed rsvp timestamp in %q: %w", sk, err)
	}
	return RSVPKey{Email: rest[:tsSep], SubmittedAt: ts, ResponseID: responseID}, nil
}

// RSVPRangeBounds returns inclusive sort key bounds covering [from, until] for
// one guest. A zero bound is open.
func RSVPRangeBounds(email string, from, until time.Time) (string, string) {
	prefix := RSVPPrefix(email)
	lo := prefix
	hi := prefix + "\uffff"
	if !from.IsZero() {
		lo = prefix + FormatTimestamp(from)
	}
	if !until.IsZero() {
		hi = prefix + FormatTimestamp(until) + sep + "\uffff"
	}
	return lo, hi
}

// GroupSK builds a group sort key.
func GroupSK(groupID string) string {
	return prefixGroup + strings.TrimSpace(groupID)
}

// ParseGroupSK returns the group id in a group sort key.
func ParseGroupSK(sk string) (string, error) {
	return trimPrefix(sk, prefixGroup, "group sort key")
}

// GroupKey is the key of a group row.
func GroupKey(eventID, groupID string) Key {
	return Key{PK: EventPK(eventID), SK: GroupSK(groupID)}
}

// InvitationPK builds the invitation lookup key from a raw code.
func InvitationPK(code string) string {
	return prefixInvite + valueobjects.NormalizeInvitationCode(code)
}

// ParseInvitationPK returns the canonical code of an invitation lookup key.
func ParseInvitationPK(pk string) (string, error) {
	return trimPrefix(pk, prefixInvite, "invitation key")
}

// InvitationKey is the key of an invitation row.
func InvitationKey(code string) Key {
	return Key{PK: InvitationPK(code), SK: SortMetadata}
}

// StatusBucket combines event and status for the status index.
func StatusBucket(eventID string, status valueobjects.RSVPStatus) string {
	return prefixStatus + strings.TrimSpace(eventID) + sep + string(status)
}

// ParseStatusBucket splits a status bucket back into event id and status.
func ParseStatusBucket(v string) (string, valueobjects.RSVPStatus, error) {
	rest, err := trimPrefix(v, prefixStatus, "status bucket")
	if err != nil {
		return "", "", err
	}
	i := strings.Index(rest, sep)
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("malformed status bucket %q", v)
	}
	return rest[:i], valueobjects.RSVPStatus(rest[i+1:]), nil
}

// AdminBucket is the admin date index partition of an event.
func AdminBucket(eventID string) string {
	return prefixAdmin + strings.TrimSpace(eventID)
}

// ParseAdminBucket returns the event id of an admin date partition.
func ParseAdminBucket(v string) (string, error) {
	return trimPrefix(v, prefixAdmin, "admin bucket")
}

// AdminDateKey is the decoded admin date index sort key.
type AdminDateKey struct {
	Date   string // yyyy-mm-dd, UTC
	Status valueobjects.RSVPStatus
	Email  string
}

// AdminDateSK orders responded guests by response date then status.
func AdminDateSK(respondedAt time.Time, status valueobjects.RSVPStatus, email string) string {
	return prefixResponded + respondedAt.UTC().Format(dateLayout) + sep + string(status) + sep + valueobjects.NormalizeEmail(email)
}

// AdminDatePrefix selects responses on one day, or every response when date is zero.
func AdminDatePrefix(date time.Time) string {
	if date.IsZero() {
		return prefixResponded
	}
	return prefixResponded + date.UTC().Format(dateLayout) + sep
}

// ParseAdminDateSK decodes an admin date sort key. The email is last so it may
// contain the separator.
func ParseAdminDateSK(sk string) (AdminDateKey, error) {
	rest, err := trimPrefix(sk, prefixResponded, "admin date key")
	if err != nil {
		return AdminDateKey{}, err
	}
	parts := strings.SplitN(rest, sep, 3)
	if len(parts) != 3 || parts[2] == "" {
		return AdminDateKey{}, fmt.Errorf("malformed admin date key %q", sk)
	}
	if _, err := time.Parse(dateLayout, parts[0]); err != nil {
		return AdminDateKey{}, fmt.Errorf("malformed admin date in %q: %w", sk, err)
	}
	return AdminDateKey{Date: parts[0], Status: valueobjects.RSVPStatus(parts[1]), Email: parts[2]}, nil
}

func trimPrefix(v, prefix, what string) (string, error) {
	if !strings.HasPrefix(v, prefix) || len(v) == len(prefix) {
		return "", fmt.Errorf("malformed %s %q", what, v)
	}
	return v[len(prefix):], nil
}
