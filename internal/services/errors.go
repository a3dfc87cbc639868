// Package services defines the business logic for access control, projects,
// material calculations, messaging, and broadcasts. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing texts is performed by the bot router.
package services

import "errors"

var (
	// ErrNoAccess indicates the acting user lacks the role required for the
	// operation. Callers answer with a generic denial and nothing else.
	ErrNoAccess = errors.New("no access")

	// ErrAlreadyProcessed is returned when a user requests access while
	// their request is no longer (or not) pending; admins are not notified
	// again.
	ErrAlreadyProcessed = errors.New("access request already processed")

	// ErrProjectNotFound indicates that the referenced project does not
	// exist (or no project matches the given address).
	ErrProjectNotFound = errors.New("project not found")

	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmptyAddress is returned when project intake finishes with a blank
	// address.
	ErrEmptyAddress = errors.New("project address is empty")

	// ErrEmptyMessage is returned when a worker tries to send an empty
	// message to the administrators.
	ErrEmptyMessage = errors.New("message text is empty")
)
