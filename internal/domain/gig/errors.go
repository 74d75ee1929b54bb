package gig

import "errors"

var (
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrGigNotFound        = errors.New("gig not found")
	ErrOverrideNotFound   = errors.New("override not found")
	ErrOverrideNotAllowed = errors.New("override only applies to another member's band gig")
	ErrTitleRequired      = errors.New("title is required")
	ErrInvalidDate        = errors.New("invalid date")
	ErrNegativeValue      = errors.New("value must not be negative")
	ErrInvalidStatus      = errors.New("invalid status")
)
