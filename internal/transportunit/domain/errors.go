package transportunit

import "wms-core/internal/apperr"

var (
	// ErrNotFound is returned when no transport unit matches.
	ErrNotFound = apperr.New(apperr.KindNotFound, apperr.CodeTransportUnitNotFound, "transport unit: not found")
	// ErrBarcodeInvalid is returned for an empty barcode.
	ErrBarcodeInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeTransportUnitBarcode, "transport unit: invalid barcode")
	// ErrAlreadyReserved is returned when a unit already carries a reservation.
	ErrAlreadyReserved = apperr.New(apperr.KindAlreadyReserved, apperr.CodeTransportUnitReserved, "transport unit: already reserved")
	// ErrTokenMissing is returned when a reservation token is empty.
	ErrTokenMissing = apperr.New(apperr.KindInvalidArgument, apperr.CodeReservationTokenMissing, "reservation: token required")
	// ErrLocationChangeRejected is returned when an approval hook vetoes a move.
	ErrLocationChangeRejected = apperr.New(apperr.KindStateChangeRejected, apperr.CodeLocationChangeRejected, "transport unit: location change rejected")
	// ErrDeletionModeUnknown is returned for an unrecognised deletion mode.
	ErrDeletionModeUnknown = apperr.New(apperr.KindConfiguration, apperr.CodeDeletionModeUnknown, "transport unit: unknown deletion mode")
	// ErrSearchAttributeInvalid is returned for a malformed search attribute.
	ErrSearchAttributeInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeSearchAttributeInvalid, "allocation: invalid search attribute")
)
