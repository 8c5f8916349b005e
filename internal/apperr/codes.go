package apperr

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Telegram errors
	CodeErrorCodeEmpty   Code = "ERROR_CODE_EMPTY"
	CodeErrorCodeInvalid Code = "ERROR_CODE_INVALID"

	// Location errors
	CodeLocationNotFound      Code = "LOCATION_NOT_FOUND"
	CodeLocationPKInvalid     Code = "LOCATION_PK_INVALID"
	CodeLocationRefMissing    Code = "LOCATION_REF_MISSING"
	CodeLocationGroupNotFound Code = "LOCATION_GROUP_NOT_FOUND"
	CodeGroupStateInvalid     Code = "LOCATION_GROUP_STATE_INVALID"
	CodeOperationModeInvalid  Code = "LOCATION_GROUP_MODE_INVALID"
	CodeStateChangeRejected   Code = "STATE_CHANGE_REJECTED"

	// Transport unit errors
	CodeTransportUnitNotFound   Code = "TU_NOT_FOUND"
	CodeTransportUnitBarcode    Code = "TU_BARCODE_INVALID"
	CodeTransportUnitReserved   Code = "TU_ALREADY_RESERVED"
	CodeReservationTokenMissing Code = "RESERVATION_TOKEN_MISSING"
	CodeLocationChangeRejected  Code = "LOCATION_CHANGE_REJECTED"
	CodeDeletionModeUnknown     Code = "DELETION_MODE_UNKNOWN"
	CodeSearchAttributeInvalid  Code = "SEARCH_ATTRIBUTE_INVALID"

	// Replica errors
	CodeReplicaNameMissing     Code = "REPLICA_NAME_MISSING"
	CodeReplicaEndpointInvalid Code = "REPLICA_ENDPOINT_INVALID"

	// Command errors
	CodeCommandTypeUnknown   Code = "COMMAND_TYPE_UNKNOWN"
	CodeCommandPayload       Code = "COMMAND_PAYLOAD_INVALID"
	CodeCommandFieldRequired Code = "COMMAND_FIELD_REQUIRED"

	// Request errors
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Configuration errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
)
