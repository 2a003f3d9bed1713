// Package models defines the client-side data models of the choir registry.
package models

import (
	"strings"
	"time"
)

// Role is a member's function in the choir organization.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RolePresident  Role = "PRESIDENT"
	RoleSecretary  Role = "SECRETARY"
	RoleTreasurer  Role = "TREASURER"
	RoleLouadoLead Role = "LOUADO_LEAD"
	RoleMember     Role = "MEMBER"
)

// User is a choir member as returned by the registry API.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Role      Role   `json:"role"`
	// Voice is the choir section (soprano, alto, tenor, bass).
	Voice  string `json:"voice,omitempty"`
	Active bool   `json:"active"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AttendanceStatus is the outcome recorded for a member at one rehearsal or service.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// ParseAttendanceStatus accepts any casing of a known status.
func ParseAttendanceStatus(s string) (AttendanceStatus, bool) {
	switch st := AttendanceStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return st, true
	}
	return "", false
}

// AttendanceRecord is unique per (UserID, Date).
type AttendanceRecord struct {
	ID     string           `json:"id,omitempty"`
	UserID string           `json:"userId"`
	Date   string           `json:"date"`
	Status AttendanceStatus `json:"status"`
	Note   string           `json:"note,omitempty"`
}

// DateLayout is the wire format of AttendanceRecord.Date and Transaction.Date.
const DateLayout = "2006-01-02"

// ValidDate reports whether s is a calendar date in DateLayout.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// TransactionType classifies money movements.
type TransactionType string

const (
	TransactionContribution TransactionType = "CONTRIBUTION"
	TransactionDonation     TransactionType = "DONATION"
	TransactionExpense      TransactionType = "EXPENSE"
)

// Transaction is a financial movement attributed to a member.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
}

// Session describes the signed-in user, decoded from the access token.
type Session struct {
	UserID    string
	Email     string
	Role      Role
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
// A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
