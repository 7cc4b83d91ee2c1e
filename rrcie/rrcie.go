// Package rrcie models the slice of the decoded LTE RRC information-element
// tree that the reference analyzers need: ciphering configuration reachable
// from a SecurityModeCommand or an RRCConnectionReconfiguration. The actual
// ASN.1 PER decoder that turns a DL-DCCH payload into one of these values is
// out of scope (see Decoder in decoder.go); this package only defines the shape of
// the result, transcribed field-for-field from the 3GPP RRC ASN.1 module so
// the optional-chain walks in analyzers/nullcipher line up with the spec.
package rrcie

// CipheringAlgorithm is EUTRA-CipheringAlgorithm-r12 from the RRC ASN.1
// module. EEA0 is the null cipher: no over-the-air encryption.
type CipheringAlgorithm uint8

const (
	EEA0 CipheringAlgorithm = iota
	EEA1
	EEA2
	EEA3
)

func (c CipheringAlgorithm) String() string {
	switch c {
	case EEA0:
		return "eea0"
	case EEA1:
		return "eea1"
	case EEA2:
		return "eea2"
	case EEA3:
		return "eea3"
	default:
		return "unknown"
	}
}

// SecurityAlgorithmConfig is SecurityAlgorithmConfig from the RRC ASN.1
// module.
type SecurityAlgorithmConfig struct {
	CipheringAlgorithm     CipheringAlgorithm
	IntegrityProtAlgorithm uint8
}

// SecurityConfigSMC is SecurityConfigSMC, the sole payload of a
// SecurityModeCommand.
type SecurityConfigSMC struct {
	SecurityAlgorithmConfig SecurityAlgorithmConfig
}

// SecurityModeCommand is a decoded DL-DCCH SecurityModeCommand message.
type SecurityModeCommand struct {
	SecurityConfigSMC SecurityConfigSMC
}

func (SecurityModeCommand) isDLDCCHMessage() {}

// IntraLTEHandoverType and InterRATHandoverType are the two branches of
// HandoverType's CHOICE in SecurityConfigHO.
type IntraLTEHandoverType struct {
	SecurityAlgorithmConfig SecurityAlgorithmConfig
}

type InterRATHandoverType struct {
	SecurityAlgorithmConfig SecurityAlgorithmConfig
}

// HandoverTypeChoice mirrors the handoverType CHOICE; at most one branch is
// non-nil, matching which alternative the original encoder selected.
type HandoverTypeChoice struct {
	IntraLTE *IntraLTEHandoverType
	InterRAT *InterRATHandoverType
}

// SecurityConfigHO is SecurityConfigHO from RRCConnectionReconfiguration-r8.
type SecurityConfigHO struct {
	HandoverType HandoverTypeChoice
}

// MobilityControlInfoSCGR12 carries the SCG ciphering algorithm introduced
// in Rel-12 dual connectivity.
type MobilityControlInfoSCGR12 struct {
	CipheringAlgorithmSCGR12 CipheringAlgorithm
}

type SCGConfigPartSCGR12 struct {
	MobilityControlInfoSCGR12 *MobilityControlInfoSCGR12
}

// SCGConfigurationR12Setup is the "setup" branch of the
// scgConfiguration-r12 CHOICE{release, setup}; a nil value anywhere up the
// chain (including this one standing for "release" or "absent") means the
// walk stops with no event, exactly as an optional ASN.1 field would.
type SCGConfigurationR12Setup struct {
	SCGConfigPartSCGR12 *SCGConfigPartSCGR12
}

// SecurityAlgorithmConfigR15 is the Rel-15 5GC-interworking variant of
// SecurityAlgorithmConfig, carried under securityConfigHO_v1530.
type SecurityAlgorithmConfigR15 struct {
	CipheringAlgorithm CipheringAlgorithm
}

type HandoverSubtypeR15 struct {
	SecurityAlgorithmConfigR15 SecurityAlgorithmConfigR15
}

// HandoverTypeV1530Choice is handoverType_v1530's CHOICE of three
// interworking directions.
type HandoverTypeV1530Choice struct {
	Intra5GC    *HandoverSubtypeR15
	FiveGCToEPC *HandoverSubtypeR15
	EPCTo5GC    *HandoverSubtypeR15
}

type SecurityConfigHOV1530 struct {
	HandoverTypeV1530 HandoverTypeV1530Choice
}

// The nonCriticalExtension chain below is a textbook instance of the
// self-similar "extension addition group" pattern RRC uses to append
// release-gated fields without breaking earlier decoders: each release adds
// at most one optional field plus a pointer to the next release's group.
// Representing it as nested pointer structs (rather than shared references)
// keeps the tree a pure data value, per the cyclic-reference design note.
type NonCriticalExtensionV1530 struct {
	SecurityConfigHOV1530 *SecurityConfigHOV1530
}

type NonCriticalExtensionV1510 struct {
	V1530 *NonCriticalExtensionV1530
}

type NonCriticalExtensionV1430 struct {
	V1510 *NonCriticalExtensionV1510
}

type NonCriticalExtensionV1310 struct {
	V1430 *NonCriticalExtensionV1430
}

type NonCriticalExtensionV1250 struct {
	SCGConfigurationR12 *SCGConfigurationR12Setup
	V1310               *NonCriticalExtensionV1310
}

type NonCriticalExtensionV1130 struct {
	V1250 *NonCriticalExtensionV1250
}

type NonCriticalExtensionV1020 struct {
	V1130 *NonCriticalExtensionV1130
}

type NonCriticalExtensionV920 struct {
	V1020 *NonCriticalExtensionV1020
}

type NonCriticalExtensionV890 struct {
	V920 *NonCriticalExtensionV920
}

// RRCConnectionReconfigurationR8 is rrcConnectionReconfiguration-r8, reached
// through criticalExtensions.c1.
type RRCConnectionReconfigurationR8 struct {
	SecurityConfigHO     *SecurityConfigHO
	NonCriticalExtension *NonCriticalExtensionV890
}

type C1Choice struct {
	RRCConnectionReconfigurationR8 *RRCConnectionReconfigurationR8
}

type CriticalExtensions struct {
	C1 *C1Choice
}

// RRCConnectionReconfiguration is a decoded DL-DCCH
// RRCConnectionReconfiguration message.
type RRCConnectionReconfiguration struct {
	CriticalExtensions CriticalExtensions
}

func (RRCConnectionReconfiguration) isDLDCCHMessage() {}

// DLDCCHMessage is the decoded form of any message carried on the LTE RRC
// downlink dedicated control channel. Only the two variants the reference
// analyzers inspect are modeled; everything else decodes to Other.
type DLDCCHMessage interface {
	isDLDCCHMessage()
}

// Other stands in for any DL-DCCH message type this package does not model
// field-by-field (RRCConnectionRelease, UECapabilityEnquiry, and so on).
type Other struct{}

func (Other) isDLDCCHMessage() {}
