// Package nasie decodes the subset of 3GPP TS 24.301 EMM (EPS Mobility
// Management) NAS messages the diagnostic IMSI-exposure analyzer inspects.
// Unlike the RRC ASN.1 PER payloads (see rrcie), NAS messages are a simple
// octet-aligned TLV encoding, small enough to decode directly rather than
// treat as an opaque external capability.
package nasie

import (
	"errors"
	"fmt"
)

// ErrTooShort is returned when a NAS message doesn't carry enough bytes for
// its header plus the message-specific fields this package decodes.
var ErrTooShort = errors.New("nasie: message too short")

// MessageType is the EMM message type octet (3GPP TS 24.301 table 9.8.1).
type MessageType uint8

const (
	MessageTypeAttachRequest            MessageType = 0x41
	MessageTypeAttachReject              MessageType = 0x44
	MessageTypeDetachRequest             MessageType = 0x45
	MessageTypeTrackingAreaUpdateReject  MessageType = 0x4b
	MessageTypeServiceReject             MessageType = 0x4e
	MessageTypeIdentityRequest           MessageType = 0x55
)

// IdentityType is the "Identity type 2" IE value (3GPP TS 24.301 9.9.3.10).
type IdentityType uint8

const (
	IdentityTypeIMSI   IdentityType = 1
	IdentityTypeIMEI   IdentityType = 2
	IdentityTypeIMEISV IdentityType = 3
	IdentityTypeTMSI   IdentityType = 4
	IdentityTypeGUTI   IdentityType = 6
)

func (t IdentityType) String() string {
	switch t {
	case IdentityTypeIMSI:
		return "IMSI"
	case IdentityTypeIMEI:
		return "IMEI"
	case IdentityTypeIMEISV:
		return "IMEISV"
	case IdentityTypeTMSI:
		return "TMSI"
	case IdentityTypeGUTI:
		return "GUTI"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Cause is the EMM cause octet (3GPP TS 24.301 9.9.3.9).
type Cause uint8

const (
	CauseIllegalUE                                      Cause = 3
	CauseIllegalME                                      Cause = 6
	CauseEPSServicesNotAllowed                          Cause = 7
	CauseEPSAndNonEPSServicesNotAllowed                  Cause = 8
	CausePLMNNotAllowed                                  Cause = 11
	CauseTrackingAreaNotAllowed                          Cause = 12
	CauseRoamingNotAllowedInTrackingArea                 Cause = 13
	CauseEPSServicesNotAllowedInThisPLMN                 Cause = 14
	CauseNoSuitableCellsInTrackingArea                   Cause = 15
	CauseUEIdentityCannotBeDerivedByTheNetwork           Cause = 18
	CauseRequestedServiceOptionNotAuthorizedInThisPLMN   Cause = 35
)

func (c Cause) String() string {
	switch c {
	case CauseIllegalUE:
		return "illegal UE"
	case CauseIllegalME:
		return "illegal ME"
	case CauseEPSServicesNotAllowed:
		return "EPS services not allowed"
	case CauseEPSAndNonEPSServicesNotAllowed:
		return "EPS and non-EPS services not allowed"
	case CausePLMNNotAllowed:
		return "PLMN not allowed"
	case CauseTrackingAreaNotAllowed:
		return "tracking area not allowed"
	case CauseRoamingNotAllowedInTrackingArea:
		return "roaming not allowed in this tracking area"
	case CauseEPSServicesNotAllowedInThisPLMN:
		return "EPS services not allowed in this PLMN"
	case CauseNoSuitableCellsInTrackingArea:
		return "no suitable cells in tracking area"
	case CauseUEIdentityCannotBeDerivedByTheNetwork:
		return "UE identity cannot be derived by the network"
	case CauseRequestedServiceOptionNotAuthorizedInThisPLMN:
		return "requested service option not authorized in this PLMN"
	default:
		return fmt.Sprintf("cause %d", uint8(c))
	}
}

// The three forbidden-cause sets below are transcribed message-type by
// message-type from original_source/lib/src/analysis/diagnostic.rs's
// is_imsi_exposing_nas: each EMM reject message has its own cause set, not
// a single set shared across all three, and the sets only partially
// overlap.

// tauRejectForbiddenCauses are the EMMCause values that make a
// TrackingAreaUpdateReject IMSI-exposing.
var tauRejectForbiddenCauses = map[Cause]bool{
	CauseIllegalUE:                                     true,
	CauseIllegalME:                                     true,
	CauseEPSServicesNotAllowed:                         true,
	CauseEPSAndNonEPSServicesNotAllowed:                true,
	CauseTrackingAreaNotAllowed:                        true,
	CauseEPSServicesNotAllowedInThisPLMN:               true,
	CauseRequestedServiceOptionNotAuthorizedInThisPLMN: true,
}

// attachRejectForbiddenCauses are the EMMCause values that make an
// AttachReject IMSI-exposing.
var attachRejectForbiddenCauses = map[Cause]bool{
	CauseIllegalUE:                                     true,
	CauseIllegalME:                                     true,
	CauseEPSServicesNotAllowed:                         true,
	CauseEPSAndNonEPSServicesNotAllowed:                true,
	CausePLMNNotAllowed:                                true,
	CauseTrackingAreaNotAllowed:                        true,
	CauseRoamingNotAllowedInTrackingArea:                true,
	CauseEPSServicesNotAllowedInThisPLMN:               true,
	CauseNoSuitableCellsInTrackingArea:                 true,
	CauseRequestedServiceOptionNotAuthorizedInThisPLMN: true,
}

// serviceRejectForbiddenCauses are the EMMCause values that make a
// ServiceReject IMSI-exposing.
var serviceRejectForbiddenCauses = map[Cause]bool{
	CauseIllegalUE:                                     true,
	CauseIllegalME:                                     true,
	CauseEPSServicesNotAllowed:                         true,
	CauseUEIdentityCannotBeDerivedByTheNetwork:         true,
	CauseTrackingAreaNotAllowed:                        true,
	CauseEPSServicesNotAllowedInThisPLMN:               true,
	CauseRequestedServiceOptionNotAuthorizedInThisPLMN: true,
}

// IsForbiddenForTrackingAreaUpdateReject reports whether c makes a
// TrackingAreaUpdateReject carrying it an IMSI-exposure indicator.
func (c Cause) IsForbiddenForTrackingAreaUpdateReject() bool {
	return tauRejectForbiddenCauses[c]
}

// IsForbiddenForAttachReject reports whether c makes an AttachReject
// carrying it an IMSI-exposure indicator.
func (c Cause) IsForbiddenForAttachReject() bool { return attachRejectForbiddenCauses[c] }

// IsForbiddenForServiceReject reports whether c makes a ServiceReject
// carrying it an IMSI-exposure indicator.
func (c Cause) IsForbiddenForServiceReject() bool { return serviceRejectForbiddenCauses[c] }

// DetachTypeIMSIDetach is the only detach type value the diagnostic
// analyzer treats as benign for a network-originated DetachRequest.
const DetachTypeIMSIDetach uint8 = 3

// Message is the decoded form of an EMM message. Only the variants the
// diagnostic analyzer inspects are modeled field-by-field; every other EMM
// message type decodes to Other.
type Message interface {
	isMessage()
}

// IdentityRequest is MessageTypeIdentityRequest.
type IdentityRequest struct {
	IdentityType IdentityType
}

func (IdentityRequest) isMessage() {}

// TrackingAreaUpdateReject is MessageTypeTrackingAreaUpdateReject.
type TrackingAreaUpdateReject struct {
	Cause Cause
}

func (TrackingAreaUpdateReject) isMessage() {}

// AttachReject is MessageTypeAttachReject.
type AttachReject struct {
	Cause Cause
}

func (AttachReject) isMessage() {}

// ServiceReject is MessageTypeServiceReject.
type ServiceReject struct {
	Cause Cause
}

func (ServiceReject) isMessage() {}

// DetachRequest is MessageTypeDetachRequest. DetachType is the low 3 bits
// of the detach-type-and-switch-off octet; see DetachTypeIMSIDetach.
type DetachRequest struct {
	DetachType uint8
}

func (DetachRequest) isMessage() {}

// AttachRequest is MessageTypeAttachRequest. It carries no fields because
// the diagnostic analyzer deliberately never inspects it (see
// analyzers/imsiexposure).
type AttachRequest struct{}

func (AttachRequest) isMessage() {}

// Other stands in for any EMM message type this package does not decode
// field-by-field.
type Other struct {
	MessageType MessageType
}

func (Other) isMessage() {}

// Decode parses the EMM-specific fields out of a plain (not
// security-protected) NAS message body: octet 1 is protocol
// discriminator/security header type, octet 2 is the EMM message type,
// anything after is message-specific.
func Decode(msg []byte) (Message, error) {
	if len(msg) < 2 {
		return nil, ErrTooShort
	}
	msgType := MessageType(msg[1])
	rest := msg[2:]
	switch msgType {
	case MessageTypeIdentityRequest:
		if len(rest) < 1 {
			return nil, ErrTooShort
		}
		return IdentityRequest{IdentityType: IdentityType(rest[0] & 0x07)}, nil
	case MessageTypeTrackingAreaUpdateReject:
		if len(rest) < 1 {
			return nil, ErrTooShort
		}
		return TrackingAreaUpdateReject{Cause: Cause(rest[0])}, nil
	case MessageTypeAttachReject:
		if len(rest) < 1 {
			return nil, ErrTooShort
		}
		return AttachReject{Cause: Cause(rest[0])}, nil
	case MessageTypeServiceReject:
		if len(rest) < 1 {
			return nil, ErrTooShort
		}
		return ServiceReject{Cause: Cause(rest[0])}, nil
	case MessageTypeDetachRequest:
		if len(rest) < 1 {
			return nil, ErrTooShort
		}
		return DetachRequest{DetachType: rest[0] & 0x07}, nil
	case MessageTypeAttachRequest:
		return AttachRequest{}, nil
	default:
		return Other{MessageType: msgType}, nil
	}
}
