package commands

import (
	"strings"

	location "wms-core/internal/location/domain"
	replica "wms-core/internal/replica/domain"
)

// Profile names the validation rule set a payload is checked against.
type Profile string

const (
	ProfileStateChange   Profile = "state-change"
	ProfileOperator      Profile = "operator"
	ProfileLocationRef   Profile = "location-ref"
	ProfileRegistration  Profile = "registration"
	ProfileAcknowledge   Profile = "acknowledge"
	ProfileTransportUnit Profile = "transport-unit"
)

// Payload is a decoded command body.
type Payload interface {
	Profile() Profile
	Validate() error
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrFieldRequired.With("field", field)
	}
	return nil
}

// LocationRefFields addresses a location in command payloads.
type LocationRefFields struct {
	LocationID string `json:"location_id,omitempty"`
	LocationPK string `json:"location_pk,omitempty"`
	PLCCode    string `json:"plc_code,omitempty"`
	ERPCode    string `json:"erp_code,omitempty"`
}

// Ref converts the fields to a location reference.
func (f LocationRefFields) Ref() (location.Ref, error) {
	ref := location.Ref{
		ID:      strings.TrimSpace(f.LocationID),
		PLCCode: strings.TrimSpace(f.PLCCode),
		ERPCode: strings.TrimSpace(f.ERPCode),
	}
	if raw := strings.TrimSpace(f.LocationPK); raw != "" {
		pk, err := location.ParseLocationPK(raw)
		if err != nil {
			return location.Ref{}, err
		}
		ref.PK = &pk
	}
	if err := ref.Validate(); err != nil {
		return location.Ref{}, err
	}
	return ref, nil
}

// ChangeLocationState carries a PLC telegram for one location.
type ChangeLocationState struct {
	LocationRefFields
	ErrorCode string `json:"error_code"`
	PLCState  *int   `json:"plc_state,omitempty"`
}

func (ChangeLocationState) Profile() Profile { return ProfileStateChange }

func (p ChangeLocationState) Validate() error {
	if _, err := p.Ref(); err != nil {
		return err
	}
	return required("error_code", p.ErrorCode)
}

// ChangeGroupState carries a PLC telegram for a location group.
type ChangeGroupState struct {
	GroupName string `json:"group_name"`
	ErrorCode string `json:"error_code"`
}

func (ChangeGroupState) Profile() Profile { return ProfileStateChange }

func (p ChangeGroupState) Validate() error {
	if err := required("group_name", p.GroupName); err != nil {
		return err
	}
	return required("error_code", p.ErrorCode)
}

// SetGroupState is an operator assignment of both group states.
type SetGroupState struct {
	GroupName string `json:"group_name"`
	StateIn   string `json:"state_in"`
	StateOut  string `json:"state_out"`
}

func (SetGroupState) Profile() Profile { return ProfileOperator }

func (p SetGroupState) Validate() error {
	if err := required("group_name", p.GroupName); err != nil {
		return err
	}
	if _, err := location.ParseGroupState(p.StateIn); err != nil {
		return err
	}
	_, err := location.ParseGroupState(p.StateOut)
	return err
}

// SetGroupMode is an operator assignment of the operation mode.
type SetGroupMode struct {
	GroupName     string `json:"group_name"`
	OperationMode string `json:"operation_mode"`
}

func (SetGroupMode) Profile() Profile { return ProfileOperator }

func (p SetGroupMode) Validate() error {
	if err := required("group_name", p.GroupName); err != nil {
		return err
	}
	_, err := location.ParseOperationMode(p.OperationMode)
	return err
}

// SetLocationEmpty marks a location empty and locked.
type SetLocationEmpty struct {
	LocationRefFields
}

func (SetLocationEmpty) Profile() Profile { return ProfileLocationRef }

func (p SetLocationEmpty) Validate() error {
	_, err := p.Ref()
	return err
}

// ReplicaRegistration registers or unregisters a replica.
type ReplicaRegistration struct {
	replica.Registration
}

func (ReplicaRegistration) Profile() Profile { return ProfileRegistration }

func (p ReplicaRegistration) Validate() error {
	return p.Registration.Validate()
}

// AckReservation hands a reservation over to a business id.
type AckReservation struct {
	ReservationID string `json:"reservation_id"`
	BusinessID    string `json:"business_id"`
	SequenceNo    int    `json:"sequence_no"`
}

func (AckReservation) Profile() Profile { return ProfileAcknowledge }

func (p AckReservation) Validate() error {
	if err := required("reservation_id", p.ReservationID); err != nil {
		return err
	}
	return required("business_id", p.BusinessID)
}

// TransportUnitCommand covers create, move and the deletion commands.
// ActualLocation is required by TU_CREATE, TargetLocation by TU_MOVE.
type TransportUnitCommand struct {
	Barcode        string `json:"barcode"`
	ActualLocation string `json:"actual_location,omitempty"`
	TargetLocation string `json:"target_location,omitempty"`
	UnitType       string `json:"type,omitempty"`
	Token          string `json:"token,omitempty"`
}

func (TransportUnitCommand) Profile() Profile { return ProfileTransportUnit }

func (p TransportUnitCommand) Validate() error {
	return required("barcode", p.Barcode)
}

// Actual parses the actual location.
func (p TransportUnitCommand) Actual() (location.LocationPK, error) {
	if err := required("actual_location", p.ActualLocation); err != nil {
		return location.LocationPK{}, err
	}
	return location.ParseLocationPK(strings.TrimSpace(p.ActualLocation))
}

// Target parses the target location.
func (p TransportUnitCommand) Target() (location.LocationPK, error) {
	if err := required("target_location", p.TargetLocation); err != nil {
		return location.LocationPK{}, err
	}
	return location.ParseLocationPK(strings.TrimSpace(p.TargetLocation))
}
