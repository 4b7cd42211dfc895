package domain

import "strings"

// MemberRecord is a single row from the membership roster. A record is
// reachable through either of its two email addresses; both map to the
// same record. Records are replaced wholesale on every cache refresh and
// never mutated individually.
type MemberRecord struct {
	FullName         string `json:"full_name"`
	Section          string `json:"section"`
	MembershipStatus string `json:"membership_status"`
	OrgEmail         string `json:"org_email"`
	PersonalEmail    string `json:"personal_email"`
}

// NormalizeEmail lowercases and trims surrounding whitespace. All email
// comparisons in the system go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
