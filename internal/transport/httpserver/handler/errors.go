package handler

import (
	"errors"
	"net/http"

	banddomain "gigbook/internal/domain/band"
	gigdomain "gigbook/internal/domain/gig"
	"gigbook/pkg/logger"
)

// writeDomainError maps domain sentinels onto the HTTP error envelope.
// Anything unmapped is a store/transport failure and surfaces as a 500 the
// client may retry by repeating the action.
func writeDomainError(w http.ResponseWriter, log logger.Logger, op string, err error, args ...any) {
	type mapping struct {
		target  error
		status  int
		code    string
		message string
	}

	mappings := []mapping{
		{gigdomain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "sign in required"},
		{gigdomain.ErrPermissionDenied, http.StatusForbidden, "permission_denied", "permission denied"},
		{banddomain.ErrPermissionDenied, http.StatusForbidden, "permission_denied", "permission denied"},
		{banddomain.ErrOwnerImmutable, http.StatusForbidden, "owner_immutable", "the owner's role cannot be changed"},
		{banddomain.ErrOwnerCannotLeave, http.StatusConflict, "owner_cannot_leave", "the owner must delete the band instead of leaving"},
		{banddomain.ErrAlreadyMember, http.StatusConflict, "already_member", "already a member"},
		{gigdomain.ErrGigNotFound, http.StatusNotFound, "gig_not_found", "gig not found"},
		{gigdomain.ErrOverrideNotFound, http.StatusNotFound, "override_not_found", "override not found"},
		{banddomain.ErrBandNotFound, http.StatusNotFound, "band_not_found", "band not found"},
		{banddomain.ErrMemberNotFound, http.StatusNotFound, "member_not_found", "member not found"},
		{banddomain.ErrInviteNotFound, http.StatusNotFound, "invite_not_found", "invite not found"},
		{banddomain.ErrInviteExpired, http.StatusGone, "invite_expired", "invite expired"},
		{banddomain.ErrInviteNotYours, http.StatusForbidden, "invite_not_yours", "invite addressed to a different email"},
		{gigdomain.ErrOverrideNotAllowed, http.StatusBadRequest, "override_not_allowed", "override only applies to another member's band gig"},
		{gigdomain.ErrTitleRequired, http.StatusBadRequest, "invalid_request", "title is required"},
		{gigdomain.ErrInvalidDate, http.StatusBadRequest, "invalid_date", "date must be a valid YYYY-MM-DD day"},
		{gigdomain.ErrNegativeValue, http.StatusBadRequest, "invalid_value", "value must not be negative"},
		{gigdomain.ErrInvalidStatus, http.StatusBadRequest, "invalid_status", "status must be PENDING or PAID"},
		{banddomain.ErrNameRequired, http.StatusBadRequest, "invalid_request", "name is required"},
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			log.BusinessError(op, err, args...)
			writeError(w, m.status, m.code, m.message)
			return
		}
	}

	log.InternalError(op, err, args...)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
