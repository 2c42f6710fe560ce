package service

import "errors"

// Business rejections are surfaced to the caller and never logged as
// errors; anything else propagates as an internal failure.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventClosed          = errors.New("event is closed for registration")
	ErrAlreadyRegistered    = errors.New("user already has an active registration for this event")
	ErrAlreadyWaitlisted    = errors.New("user is already on the waitlist for this event")
	ErrInvalidAttendeeCount = errors.New("attendee count must be at least 1")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrAlreadyCancelled     = errors.New("registration is already cancelled")
)
