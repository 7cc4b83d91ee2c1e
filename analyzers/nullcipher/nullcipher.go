// Package nullcipher implements the reference analyzer that flags cells
// suggesting the EEA0 null ciphering algorithm over the LTE RRC downlink
// dedicated control channel.
package nullcipher

import (
	"github.com/EFForg/rayhunter-sub000/analyzerharness"
	"github.com/EFForg/rayhunter-sub000/rrcie"
)

// Analyzer inspects downlink DCCH messages for an offered or confirmed
// EEA0 (null) ciphering algorithm.
type Analyzer struct{}

func (Analyzer) Name() string        { return "Null Cipher Detector" }
func (Analyzer) Description() string { return "Detects cells suggesting use of the null (EEA0) cipher" }
func (Analyzer) Version() uint32     { return 1 }

// Analyze implements analyzerharness.Analyzer. Only LteRrcOtaIE values are
// inspected; every other InformationElement shape yields no event.
func (Analyzer) Analyze(ie analyzerharness.InformationElement, _ uint64) *analyzerharness.Event {
	if ie.LteRrcOtaIE == nil {
		return nil
	}
	if usesNullCipher(ie.LteRrcOtaIE) {
		return &analyzerharness.Event{
			Severity: analyzerharness.High,
			Message:  "Cell suggested use of null cipher",
		}
	}
	return nil
}

// usesNullCipher walks every path spec.md section 4.6 names, returning true
// the moment one resolves to EEA0. Every optional-chain link that is absent
// contributes no event rather than an error.
func usesNullCipher(msg rrcie.DLDCCHMessage) bool {
	switch m := msg.(type) {
	case rrcie.SecurityModeCommand:
		return m.SecurityConfigSMC.SecurityAlgorithmConfig.CipheringAlgorithm == rrcie.EEA0
	case rrcie.RRCConnectionReconfiguration:
		return reconfigUsesNullCipher(m)
	default:
		return false
	}
}

func reconfigUsesNullCipher(m rrcie.RRCConnectionReconfiguration) bool {
	c1 := m.CriticalExtensions.C1
	if c1 == nil || c1.RRCConnectionReconfigurationR8 == nil {
		return false
	}
	r8 := c1.RRCConnectionReconfigurationR8

	if r8.SecurityConfigHO != nil {
		ht := r8.SecurityConfigHO.HandoverType
		switch {
		case ht.IntraLTE != nil:
			if ht.IntraLTE.SecurityAlgorithmConfig.CipheringAlgorithm == rrcie.EEA0 {
				return true
			}
		case ht.InterRAT != nil:
			if ht.InterRAT.SecurityAlgorithmConfig.CipheringAlgorithm == rrcie.EEA0 {
				return true
			}
		}
	}

	v890 := r8.NonCriticalExtension
	if v890 == nil || v890.V920 == nil || v890.V920.V1020 == nil ||
		v890.V920.V1020.V1130 == nil || v890.V920.V1020.V1130.V1250 == nil {
		return false
	}
	v1250 := v890.V920.V1020.V1130.V1250

	if scgUsesNullCipher(v1250.SCGConfigurationR12) {
		return true
	}

	if v1250.V1310 == nil || v1250.V1310.V1430 == nil || v1250.V1310.V1430.V1510 == nil ||
		v1250.V1310.V1430.V1510.V1530 == nil || v1250.V1310.V1430.V1510.V1530.SecurityConfigHOV1530 == nil {
		return false
	}
	htv1530 := v1250.V1310.V1430.V1510.V1530.SecurityConfigHOV1530.HandoverTypeV1530

	var subtype *rrcie.HandoverSubtypeR15
	switch {
	case htv1530.Intra5GC != nil:
		subtype = htv1530.Intra5GC
	case htv1530.FiveGCToEPC != nil:
		subtype = htv1530.FiveGCToEPC
	case htv1530.EPCTo5GC != nil:
		subtype = htv1530.EPCTo5GC
	}
	if subtype == nil {
		return false
	}
	return subtype.SecurityAlgorithmConfigR15.CipheringAlgorithm == rrcie.EEA0
}

// scgUsesNullCipher walks the setup.scgConfigPartSCG_r12.mobilityControlInfoSCG_r12
// chain; a nil at any point (including "release" for the setup branch
// itself) means no event.
func scgUsesNullCipher(setup *rrcie.SCGConfigurationR12Setup) bool {
	if setup == nil || setup.SCGConfigPartSCGR12 == nil || setup.SCGConfigPartSCGR12.MobilityControlInfoSCGR12 == nil {
		return false
	}
	return setup.SCGConfigPartSCGR12.MobilityControlInfoSCGR12.CipheringAlgorithmSCGR12 == rrcie.EEA0
}
