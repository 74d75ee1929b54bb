package band

import "errors"

var (
	ErrBandNotFound     = errors.New("band not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrOwnerImmutable   = errors.New("owner role cannot be changed")
	ErrOwnerCannotLeave = errors.New("owner must delete the band instead of leaving")
	ErrAlreadyMember    = errors.New("already a member")
	ErrInviteNotFound   = errors.New("invite not found")
	ErrInviteExpired    = errors.New("invite expired")
	ErrInviteNotYours   = errors.New("invite addressed to a different email")
	ErrNameRequired     = errors.New("name is required")
)
