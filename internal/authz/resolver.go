// Package authz derives the capability set a user holds over an activity.
package authz

import (
	"strings"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// Role enumerates the user roles carried by bearer tokens.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole normalises a raw claim value. Unknown values map to "".
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent
	case RoleTeacher:
		return RoleTeacher
	case RoleAdmin:
		return RoleAdmin
	default:
		return ""
	}
}

// User is the explicit current-user value passed into every core operation.
type User struct {
	ID   uint
	Role Role
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsReviewer reports whether the user may decide review transitions.
func (u User) IsReviewer() bool { return u.Role == RoleTeacher || u.Role == RoleAdmin }

// Capabilities is the result of resolving a user against an activity.
type Capabilities struct {
	IsOwner       bool
	IsReviewer    bool
	IsParticipant bool
}

// Resolve computes the capability set. It performs no I/O; IsParticipant is
// only meaningful when activity.Participants has been loaded.
func Resolve(user User, activity models.Activity) Capabilities {
	caps := Capabilities{
		IsOwner:    (user.ID != 0 && user.ID == activity.OwnerID) || user.IsAdmin(),
		IsReviewer: user.IsReviewer(),
	}
	for _, participant := range activity.Participants {
		if participant.UserID == user.ID {
			caps.IsParticipant = true
			break
		}
	}
	return caps
}
