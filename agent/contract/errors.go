package contract

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrInputUnparsable  = errors.New("input could not be parsed")
	ErrNoAvailability   = errors.New("no availability")
	ErrCapacityConflict = errors.New("slot is at capacity")
	ErrNoStaffAvailable = errors.New("no active staff available")
	ErrExternalService  = errors.New("external service failure")
	ErrConfiguration    = errors.New("configuration error")
	ErrNotFound         = errors.New("not found")
)
