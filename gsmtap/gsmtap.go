// Package gsmtap builds the neutral GSMTAP packet-trace header used to
// hand decoded LTE RRC and NAS messages to a standard packet-trace
// consumer. See https://github.com/osmocom/libosmocore/blob/master/include/osmocom/core/gsmtap.h
package gsmtap

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
)

// LayerTypeGSMTAP is registered with gopacket so a GSMTAPHeader can be
// serialized the same way pshark's LayerTypePTP is decoded.
var LayerTypeGSMTAP = gopacket.RegisterLayerType(
	int(gopacket.LayerTypeIPSec)+401, // arbitrary unused layer id in this module's namespace
	gopacket.LayerTypeMetadata{Name: "GSMTAP", Decoder: gopacket.DecodeFunc(decodeGSMTAP)},
)

// PacketType is the outer GSMTAP type byte.
type PacketType uint8

const (
	PacketTypeUm            PacketType = 0x01
	PacketTypeAbis          PacketType = 0x02
	PacketTypeUmBurst       PacketType = 0x03
	PacketTypeSIM           PacketType = 0x04
	PacketTypeTetraI1       PacketType = 0x05
	PacketTypeTetraI1Burst  PacketType = 0x06
	PacketTypeWmxBurst      PacketType = 0x07
	PacketTypeGbLLC         PacketType = 0x08
	PacketTypeGbSNDCP       PacketType = 0x09
	PacketTypeGmr1Um        PacketType = 0x0a
	PacketTypeUmtsRlcMac    PacketType = 0x0b
	PacketTypeUmtsRRC       PacketType = 0x0c
	PacketTypeLteRRC        PacketType = 0x0d
	PacketTypeLteMAC        PacketType = 0x0e
	PacketTypeLteMACFramed  PacketType = 0x0f
	PacketTypeOsmocoreLog   PacketType = 0x10
	PacketTypeQCDiag        PacketType = 0x11
	PacketTypeLteNAS        PacketType = 0x12
	PacketTypeE1T1          PacketType = 0x13
	PacketTypeGsmRLP        PacketType = 0x14
)

// LteRrcSubtype is the GSMTAP subtype carried when PacketType is
// PacketTypeLteRRC.
type LteRrcSubtype uint8

const (
	LteRrcDlCcch        LteRrcSubtype = 0
	LteRrcDlDcch        LteRrcSubtype = 1
	LteRrcUlCcch        LteRrcSubtype = 2
	LteRrcUlDcch        LteRrcSubtype = 3
	LteRrcBcchBch       LteRrcSubtype = 4
	LteRrcBcchDlSch     LteRrcSubtype = 5
	LteRrcPCCH          LteRrcSubtype = 6
	LteRrcMCCH          LteRrcSubtype = 7
	LteRrcBcchBchMbms   LteRrcSubtype = 8
	LteRrcBcchDlSchBr   LteRrcSubtype = 9
	LteRrcBcchDlSchMbms LteRrcSubtype = 10
	LteRrcScMcch        LteRrcSubtype = 11
	LteRrcSbcchSlBch    LteRrcSubtype = 12
	LteRrcSbcchSlBchV2x LteRrcSubtype = 13
	LteRrcDlCcchNb      LteRrcSubtype = 14
	LteRrcDlDcchNb      LteRrcSubtype = 15
	LteRrcUlCcchNb      LteRrcSubtype = 16
	LteRrcUlDcchNb      LteRrcSubtype = 17
	LteRrcBcchBchNb     LteRrcSubtype = 18
	LteRrcBcchBchTddNb  LteRrcSubtype = 19
	LteRrcBcchDlSchNb   LteRrcSubtype = 20
	LteRrcPcchNb        LteRrcSubtype = 21
	LteRrcScMcchNb      LteRrcSubtype = 22
)

// LteNasSubtype is the GSMTAP subtype carried when PacketType is
// PacketTypeLteNAS.
type LteNasSubtype uint8

const (
	LteNasPlain  LteNasSubtype = 0
	LteNasSecure LteNasSubtype = 1
)

// UmtsRrcSubtype is the GSMTAP subtype carried when PacketType is
// PacketTypeUmtsRRC. Only the channel subtypes this module can ever emit
// are named; the rest of the 3GPP system-information catalog from the
// original source is omitted since nothing here produces UMTS RRC traces.
type UmtsRrcSubtype uint8

const (
	UmtsRrcDlDcch UmtsRrcSubtype = 0
	UmtsRrcUlDcch UmtsRrcSubtype = 1
	UmtsRrcDlCcch UmtsRrcSubtype = 2
	UmtsRrcUlCcch UmtsRrcSubtype = 3
)

// headerLen is the fixed GSMTAP header length in 4-byte words.
const headerLen = 4

// GSMTAPHeader is the fixed 16-byte GSMTAP v2 header, transcribed
// field-for-field from the original source's GsmtapHeader.
type GSMTAPHeader struct {
	Version             uint8
	HeaderLen           uint8
	PacketType          PacketType
	Timeslot            uint8
	PCSBandIndicator    bool
	Uplink              bool
	ARFCN               uint16 // 14 bits on the wire
	SignalDBM           int8
	SignalNoiseRatioDB  uint8
	FrameNumber         uint32
	Subtype             uint8
	AntennaNumber       uint8
	Subslot             uint8
}

// NewHeader builds a header for the given packet type with the
// fixed-up version/header_len/reserved fields, mirroring
// GsmtapHeader::new in the original source.
func NewHeader(packetType PacketType, subtype uint8) *GSMTAPHeader {
	return &GSMTAPHeader{
		Version:    2,
		HeaderLen:  headerLen,
		PacketType: packetType,
		Subtype:    subtype,
	}
}

// LayerType implements gopacket.Layer.
func (h *GSMTAPHeader) LayerType() gopacket.LayerType { return LayerTypeGSMTAP }

// SerializeTo implements gopacket.SerializableLayer, writing the 16-byte
// big-endian header exactly as the original's deku layout does.
func (h *GSMTAPHeader) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(16)
	if err != nil {
		return fmt.Errorf("gsmtap: allocating header bytes: %w", err)
	}
	buf[0] = 2
	buf[1] = headerLen
	buf[2] = uint8(h.PacketType)
	buf[3] = h.Timeslot

	var flagsARFCN uint16
	if h.PCSBandIndicator {
		flagsARFCN |= 1 << 15
	}
	if h.Uplink {
		flagsARFCN |= 1 << 14
	}
	flagsARFCN |= h.ARFCN & 0x3fff
	binary.BigEndian.PutUint16(buf[4:6], flagsARFCN)

	buf[6] = uint8(h.SignalDBM)
	buf[7] = h.SignalNoiseRatioDB
	binary.BigEndian.PutUint32(buf[8:12], h.FrameNumber)
	buf[12] = h.Subtype
	buf[13] = h.AntennaNumber
	buf[14] = h.Subslot
	buf[15] = 0 // reserved

	if opts.FixLengths {
		h.HeaderLen = headerLen
	}
	return nil
}

func decodeGSMTAP(data []byte, p gopacket.PacketBuilder) error {
	return fmt.Errorf("gsmtap: decoding a GSMTAP header is not implemented, this module only emits them")
}

// Message pairs a header with its undecoded payload bytes, ready to be
// serialized through gopacket.SerializeLayers.
type Message struct {
	Header  *GSMTAPHeader
	Payload []byte
}

// Serialize writes the header followed by the raw payload into a fresh
// gopacket.SerializeBuffer, mirroring how pshark assembles packets for
// re-emission.
func (m *Message) Serialize() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	payload, err := buf.PrependBytes(len(m.Payload))
	if err != nil {
		return nil, fmt.Errorf("gsmtap: allocating payload bytes: %w", err)
	}
	copy(payload, m.Payload)
	if err := m.Header.SerializeTo(buf, gopacket.SerializeOptions{FixLengths: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
