// Package identity implements persons, credentials and role profiles.
package identity

import (
	"fmt"
	"time"
)

// RoleKind is the closed set of role tags.
type RoleKind string

const (
	RoleDoctor      RoleKind = "doctor"
	RoleNurse       RoleKind = "nurse"
	RoleCenterAdmin RoleKind = "center_admin"
	RolePatient     RoleKind = "patient"
)

// ParseRoleKind validates a role tag coming from the outside.
func ParseRoleKind(s string) (RoleKind, error) {
	switch RoleKind(s) {
	case RoleDoctor, RoleNurse, RoleCenterAdmin, RolePatient:
		return RoleKind(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Role is a tagged variant binding a role tag to its profile row id
// (Doctor.id, Nurse.id, CenterAdmin.id or Patient.id).
type Role struct {
	Kind      RoleKind `json:"kind"`
	ProfileID int64    `json:"profile_id"`
}

// Person is the identity root. Immutable after registration.
type Person struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	FamilyName  string    `json:"family_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
}

// Credential holds the login identity for exactly one person.
// The password is stored as a bcrypt hash, never in the clear.
type Credential struct {
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Role         RoleKind `json:"role"`
	PersonID     int64    `json:"person_id"`
}

// Account bundles a person with their resolved role profile.
type Account struct {
	Person Person `json:"person"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// Session is the explicit login context threaded through every workflow
// call. It is constructed once at authentication and never read from
// ambient globals.
type Session struct {
	PersonID  int64  `json:"person_id"`
	FirstName string `json:"first_name"`
	Role      Role   `json:"role"`
}

// PatientSummary is a patient row joined with its person, as listed on
// the doctor and nurse dashboards.
type PatientSummary struct {
	PatientID   int64     `json:"patient_id"`
	PersonID    int64     `json:"person_id"`
	FirstName   string    `json:"first_name"`
	FamilyName  string    `json:"family_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
}
