package gsmtap

import "fmt"

// InvalidExtHeaderVersionError is returned when an LTE RRC OTA ext header
// version has no known pdu_num -> channel mapping.
type InvalidExtHeaderVersionError struct {
	Version uint8
}

func (e *InvalidExtHeaderVersionError) Error() string {
	return fmt.Sprintf("gsmtap: no channel mapping for ext header version %d", e.Version)
}

// InvalidPDUNumError is returned when an ext header version is known but
// the pdu_num within it has no channel mapping.
type InvalidPDUNumError struct {
	Version uint8
	PDUNum  uint8
}

func (e *InvalidPDUNumError) Error() string {
	return fmt.Sprintf("gsmtap: no channel mapping for ext header version %d pdu_num %d", e.Version, e.PDUNum)
}

// pduNumTable maps a diag LTE RRC OTA pdu_num to the LTE RRC channel it
// represents. This is a wholly separate dispatch from the V0/V5/V8/V25
// ext_header_version wire-layout ranges used to decode the OTA packet
// itself: here ext_header_version groups share a pdu_num->channel table
// rather than a wire layout, and the five groups below partition a
// different set of version values than the wire-layout ranges do.
var pduNumTables = []struct {
	versions []uint8
	table    map[uint8]LteRrcSubtype
}{
	{
		versions: []uint8{0x02, 0x03, 0x04, 0x06, 0x07, 0x08, 0x0d, 0x16},
		table: map[uint8]LteRrcSubtype{
			1: LteRrcBcchBch, 2: LteRrcBcchDlSch, 3: LteRrcMCCH, 4: LteRrcPCCH,
			5: LteRrcDlCcch, 6: LteRrcDlDcch, 7: LteRrcUlCcch, 8: LteRrcUlDcch,
		},
	},
	{
		versions: []uint8{0x09, 0x0c},
		table: map[uint8]LteRrcSubtype{
			8: LteRrcBcchBch, 9: LteRrcBcchDlSch, 10: LteRrcMCCH, 11: LteRrcPCCH,
			12: LteRrcDlCcch, 13: LteRrcDlDcch, 14: LteRrcUlCcch, 15: LteRrcUlDcch,
		},
	},
	{
		versions: []uint8{0x0e, 0x0f, 0x10},
		table: map[uint8]LteRrcSubtype{
			1: LteRrcBcchBch, 2: LteRrcBcchDlSch, 4: LteRrcMCCH, 5: LteRrcPCCH,
			6: LteRrcDlCcch, 7: LteRrcDlDcch, 8: LteRrcUlCcch, 9: LteRrcUlDcch,
		},
	},
	{
		versions: []uint8{0x13, 0x1a, 0x1b},
		table: map[uint8]LteRrcSubtype{
			1: LteRrcBcchBch, 3: LteRrcBcchDlSch, 6: LteRrcMCCH, 7: LteRrcPCCH,
			8: LteRrcDlCcch, 9: LteRrcDlDcch, 10: LteRrcUlCcch, 11: LteRrcUlDcch,
			45: LteRrcBcchBchNb, 46: LteRrcBcchDlSchNb, 47: LteRrcPcchNb,
			48: LteRrcDlCcchNb, 49: LteRrcDlDcchNb, 50: LteRrcUlCcchNb, 52: LteRrcUlDcchNb,
		},
	},
	{
		versions: []uint8{0x14, 0x18, 0x19},
		table: map[uint8]LteRrcSubtype{
			1: LteRrcBcchBch, 2: LteRrcBcchDlSch, 4: LteRrcMCCH, 5: LteRrcPCCH,
			6: LteRrcDlCcch, 7: LteRrcDlDcch, 8: LteRrcUlCcch, 9: LteRrcUlDcch,
			54: LteRrcBcchBchNb, 55: LteRrcBcchDlSchNb, 56: LteRrcPcchNb,
			57: LteRrcDlCcchNb, 58: LteRrcDlDcchNb, 59: LteRrcUlCcchNb, 61: LteRrcUlDcchNb,
		},
	},
}

// ChannelForLteRrcOta returns the LTE RRC channel an OTA message's
// pdu_num represents, given the ext_header_version the message's log
// body carried. It is used both by the GSMTAP sink and by analyzers
// that need to know whether a decoded RRC message arrived on DL-DCCH.
func ChannelForLteRrcOta(extHeaderVersion, pduNum uint8) (LteRrcSubtype, error) {
	for _, group := range pduNumTables {
		for _, v := range group.versions {
			if v != extHeaderVersion {
				continue
			}
			subtype, ok := group.table[pduNum]
			if !ok {
				return 0, &InvalidPDUNumError{Version: extHeaderVersion, PDUNum: pduNum}
			}
			return subtype, nil
		}
	}
	return 0, &InvalidExtHeaderVersionError{Version: extHeaderVersion}
}

// IsDLDCCH reports whether the given ext_header_version/pdu_num pair
// maps to the LTE RRC downlink dedicated control channel, the only
// channel the null-cipher analyzer inspects.
func IsDLDCCH(extHeaderVersion, pduNum uint8) bool {
	subtype, err := ChannelForLteRrcOta(extHeaderVersion, pduNum)
	return err == nil && subtype == LteRrcDlDcch
}
