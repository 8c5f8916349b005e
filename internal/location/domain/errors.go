package location

import "wms-core/internal/apperr"

var (
	// ErrErrorCodeEmpty is returned for an empty telegram.
	ErrErrorCodeEmpty = apperr.New(apperr.KindInvalidArgument, apperr.CodeErrorCodeEmpty, "location: empty error code")
	// ErrErrorCodeInvalid is returned for a telegram of wrong length or alphabet.
	ErrErrorCodeInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeErrorCodeInvalid, "location: invalid error code")
	// ErrLocationNotFound is returned when no location matches a reference.
	ErrLocationNotFound = apperr.New(apperr.KindNotFound, apperr.CodeLocationNotFound, "location: not found")
	// ErrLocationPKInvalid is returned for a malformed coordinate key.
	ErrLocationPKInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeLocationPKInvalid, "location: invalid location pk")
	// ErrLocationRefMissing is returned when a command names no location.
	ErrLocationRefMissing = apperr.New(apperr.KindInvalidArgument, apperr.CodeLocationRefMissing, "location: reference required")
	// ErrGroupNotFound is returned when no group has the given name.
	ErrGroupNotFound = apperr.New(apperr.KindNotFound, apperr.CodeLocationGroupNotFound, "location group: not found")
	// ErrGroupStateInvalid is returned for an unknown group state value.
	ErrGroupStateInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeGroupStateInvalid, "location group: invalid state")
	// ErrOperationModeInvalid is returned for an unknown operation mode.
	ErrOperationModeInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeOperationModeInvalid, "location group: invalid operation mode")
	// ErrStateChangeRejected is returned when an approval hook vetoes a change.
	ErrStateChangeRejected = apperr.New(apperr.KindStateChangeRejected, apperr.CodeStateChangeRejected, "location: state change rejected")
)
