package entities

import "strings"

// Attendee is one named member of a guest's party.
type Attendee struct {
	Name                string   `dynamodbav:"Name" json:"name"`
	DietaryRestrictions []string `dynamodbav:"DietaryRestrictions,omitempty" json:"dietaryRestrictions,omitempty"`
}

// NormalizeRestrictions lowercases, trims and dedupes dietary restrictions.
func NormalizeRestrictions(in []string) []string {
	var cleaned []string
	for _, r := range in {
		cleaned = append(cleaned, strings.ToLower(strings.TrimSpace(r)))
	}
	return uniqueStrings(cleaned)
}
