// Package measurement drives the project → contract → period → item selection chain and the
// measurement detail workflow on top of a remote Gateway.
package measurement

import (
	"errors"

	"github.com/straye-as/measure-api/internal/domain"
)

var (
	// ErrSelectionIncomplete is returned when project, contract or period is not selected
	ErrSelectionIncomplete = errors.New("select a project, contract and period first")

	// ErrItemRequired is returned when a detail is saved without a measurement item
	ErrItemRequired = errors.New("select a measurement item first")

	// ErrDetailApproved is returned for edits and deletes of approved details
	ErrDetailApproved = errors.New("approved measurement details cannot be changed")

	// ErrDetailNotLoaded is returned for deletes and reviews of details outside the current list
	ErrDetailNotLoaded = errors.New("measurement detail is not in the current list")

	// ErrAlreadyReviewed is returned when re-review is disabled and the detail is not pending
	ErrAlreadyReviewed = errors.New("measurement detail has already been reviewed")

	// ErrPermissionDenied is returned when the session role does not allow the action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRemote wraps every gateway failure
	ErrRemote = errors.New("remote call failed")
)

// Session identifies the user the controller acts for
type Session struct {
	UserID string
	Role   domain.UserRoleType
}

// CanWrite reports whether the session may create, edit and delete details
func (s Session) CanWrite() bool {
	switch s.Role {
	case domain.RoleAdmin, domain.RoleReviewer, domain.RoleEngineer:
		return true
	}
	return false
}

// CanReview reports whether the session may approve or reject details
func (s Session) CanReview() bool {
	return s.Role == domain.RoleAdmin || s.Role == domain.RoleReviewer
}
