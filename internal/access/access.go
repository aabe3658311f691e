// Package access resolves a caller's role into an explicit capability set
// once per request. Call sites receive an Actor and never branch on the raw
// role for permission decisions.
package access

import (
	"errors"

	"github.com/google/uuid"
)

var ErrDenied = errors.New("permission denied")

type Role string

const (
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleDoctor        Role = "DOCTOR"
	RoleNurse         Role = "NURSE"
	RolePatient       Role = "PATIENT"
)

// Permissions is the capability set for the scheduling module.
type Permissions struct {
	CanView        bool
	CanModify      bool
	CanDelete      bool
	CanTransition  bool
	CanManageSlots bool
}

// Resolve maps a role to its capabilities. Unknown roles get nothing.
func Resolve(role Role) Permissions {
	switch role {
	case RoleAdministrator:
		return Permissions{CanView: true, CanModify: true, CanDelete: true, CanTransition: true, CanManageSlots: true}
	case RoleDoctor:
		return Permissions{CanView: true, CanModify: true, CanTransition: true}
	case RoleNurse:
		return Permissions{CanView: true, CanModify: true}
	case RolePatient:
		return Permissions{CanView: true, CanModify: true}
	default:
		return Permissions{}
	}
}

// Actor identifies the caller of a coordinator operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
	Perms  Permissions
}

func NewActor(userID uuid.UUID, role Role) Actor {
	return Actor{UserID: userID, Role: role, Perms: Resolve(role)}
}
