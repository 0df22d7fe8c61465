// models.go
// Defines the core data structures shared by the storage, sync and HTTP layers.

package models

import (
	"fmt"
	"math/rand"
	"time"
)

// TicketStatus is the lifecycle state of an incident ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusCancelled  TicketStatus = "CANCELLED"
)

// TicketPriority is the severity assigned to an incident.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "LOW"
	PriorityMedium   TicketPriority = "MEDIUM"
	PriorityHigh     TicketPriority = "HIGH"
	PriorityCritical TicketPriority = "CRITICAL"
)

// GeoLocation is a decimal-degrees coordinate pair.
type GeoLocation struct {
	Latitude  float64 `firestore:"latitude" json:"latitude"`
	Longitude float64 `firestore:"longitude" json:"longitude"`
}

// Ticket is an incident record. The ID is caller-generated at creation and
// immutable afterwards; after creation the only mutation path is a status
// change, which also stamps UpdatedAt.
type Ticket struct {
	ID          string `firestore:"id" json:"id"`
	Title       string `firestore:"title" json:"title"`
	Description string `firestore:"description" json:"description"`

	RequesterName string `firestore:"requesterName,omitempty" json:"requesterName,omitempty"`
	Phone         string `firestore:"phone,omitempty" json:"phone,omitempty"`
	Neighborhood  string `firestore:"neighborhood,omitempty" json:"neighborhood,omitempty"`

	Address  string       `firestore:"address" json:"address"`
	Location *GeoLocation `firestore:"location,omitempty" json:"location,omitempty"`

	Status   TicketStatus   `firestore:"status" json:"status"`
	Priority TicketPriority `firestore:"priority" json:"priority"`

	CreatedBy string `firestore:"createdBy" json:"createdBy"`
	// ISO-8601 UTC timestamps. Kept as strings so the exact wire value
	// round-trips through every backend unchanged.
	CreatedAt string `firestore:"createdAt" json:"createdAt"`
	UpdatedAt string `firestore:"updatedAt" json:"updatedAt"`

	// Photos holds data-URI blobs or plain URLs, in capture order.
	Photos []string `firestore:"photos" json:"photos"`

	AIAnalysis string `firestore:"aiAnalysis,omitempty" json:"aiAnalysis,omitempty"`
}

// UserRole defines the access level of a staff member.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleOperator    UserRole = "OPERATOR"
)

// User is a directory entry for staff. Email is the primary lookup key.
// The struct returned to callers never carries the credential; see StoredUser.
type User struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Role          UserRole `json:"role"`
	CPF           string   `json:"cpf,omitempty"`
	RecoveryEmail string   `json:"recoveryEmail,omitempty"`
	AvatarURL     string   `json:"avatarUrl,omitempty"`
}

// StoredUser is the directory's persisted form: a User plus its password
// hash. It never leaves the directory package boundary.
type StoredUser struct {
	User
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Safe returns the credential-stripped projection of a stored user.
func (u StoredUser) Safe() User {
	return u.User
}

// ValidStatus reports whether s is one of the four ticket states.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the four priorities.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ValidRole reports whether r is one of the three directory roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleCoordinator, RoleOperator:
		return true
	}
	return false
}

// NewTicketID generates a ticket identifier in the CH-<year>-<suffix> format
// used across all backends.
func NewTicketID(now time.Time) string {
	return fmt.Sprintf("CH-%d-%04d", now.Year(), rand.Intn(10000))
}

// Timestamp formats t as the ISO-8601 UTC string stored on tickets.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
