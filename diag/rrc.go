/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package diag

import (
	"encoding/binary"
	"fmt"
)

// LteRrcOtaPacket is the versioned payload of LogBody's LteRrcOtaMessage
// variant. The wire layout is picked by the extension header version byte
// that precedes it (see DecodeLteRrcOtaPacket); the four layouts share the
// same SFN/subframe, PDU number, and EARFCN accessors used by the GSMTAP
// mapper and reference analyzers.
type LteRrcOtaPacket interface {
	sfnSubfn() uint16
	PDUNum() uint8
	EARFCN() uint32
	Payload() []byte
	marshalBinary() []byte
}

// RrcSFN extracts the system frame number from a packet's combined
// SFN/subframe field.
func RrcSFN(p LteRrcOtaPacket) uint32 { return uint32(p.sfnSubfn()) >> 4 }

// RrcSubframe extracts the subframe number from a packet's combined
// SFN/subframe field.
func RrcSubframe(p LteRrcOtaPacket) uint8 { return uint8(p.sfnSubfn() & 0xf) }

// RrcV0Packet is the extension header version range [0,4] layout: no
// SIB mask, a 16-bit EARFCN.
type RrcV0Packet struct {
	RrcRelMaj, RrcRelMin, BearerID uint8
	PhyCellID                     uint16
	Earfcn                        uint16
	SfnSubfn                      uint16
	PduNum                        uint8
	Len                           uint16
	Packet                        []byte
}

func (p *RrcV0Packet) sfnSubfn() uint16 { return p.SfnSubfn }
func (p *RrcV0Packet) PDUNum() uint8    { return p.PduNum }
func (p *RrcV0Packet) EARFCN() uint32   { return uint32(p.Earfcn) }
func (p *RrcV0Packet) Payload() []byte  { return p.Packet }

func (p *RrcV0Packet) marshalBinary() []byte {
	out := make([]byte, 12+len(p.Packet))
	out[0], out[1], out[2] = p.RrcRelMaj, p.RrcRelMin, p.BearerID
	binary.LittleEndian.PutUint16(out[3:], p.PhyCellID)
	binary.LittleEndian.PutUint16(out[5:], p.Earfcn)
	binary.LittleEndian.PutUint16(out[7:], p.SfnSubfn)
	out[9] = p.PduNum
	binary.LittleEndian.PutUint16(out[10:], p.Len)
	copy(out[12:], p.Packet)
	return out
}

// RrcV5Packet is the extension header version range [5,7] layout: adds a
// 32-bit SIB mask over V0, keeps a 16-bit EARFCN.
type RrcV5Packet struct {
	RrcRelMaj, RrcRelMin, BearerID uint8
	PhyCellID                     uint16
	Earfcn                        uint16
	SfnSubfn                      uint16
	PduNum                        uint8
	SibMask                       uint32
	Len                           uint16
	Packet                        []byte
}

func (p *RrcV5Packet) sfnSubfn() uint16 { return p.SfnSubfn }
func (p *RrcV5Packet) PDUNum() uint8    { return p.PduNum }
func (p *RrcV5Packet) EARFCN() uint32   { return uint32(p.Earfcn) }
func (p *RrcV5Packet) Payload() []byte  { return p.Packet }

func (p *RrcV5Packet) marshalBinary() []byte {
	out := make([]byte, 16+len(p.Packet))
	out[0], out[1], out[2] = p.RrcRelMaj, p.RrcRelMin, p.BearerID
	binary.LittleEndian.PutUint16(out[3:], p.PhyCellID)
	binary.LittleEndian.PutUint16(out[5:], p.Earfcn)
	binary.LittleEndian.PutUint16(out[7:], p.SfnSubfn)
	out[9] = p.PduNum
	binary.LittleEndian.PutUint32(out[10:], p.SibMask)
	binary.LittleEndian.PutUint16(out[14:], p.Len)
	copy(out[16:], p.Packet)
	return out
}

// RrcV8Packet is the extension header version range [8,24] layout: widens
// EARFCN to 32 bits. This is the layout exercised by the canonical test
// vector shared with the original implementation (see message_test.go).
type RrcV8Packet struct {
	RrcRelMaj, RrcRelMin, BearerID uint8
	PhyCellID                     uint16
	Earfcn                        uint32
	SfnSubfn                      uint16
	PduNum                        uint8
	SibMask                       uint32
	Len                           uint16
	Packet                        []byte
}

func (p *RrcV8Packet) sfnSubfn() uint16 { return p.SfnSubfn }
func (p *RrcV8Packet) PDUNum() uint8    { return p.PduNum }
func (p *RrcV8Packet) EARFCN() uint32   { return p.Earfcn }
func (p *RrcV8Packet) Payload() []byte  { return p.Packet }

func (p *RrcV8Packet) marshalBinary() []byte {
	out := make([]byte, 18+len(p.Packet))
	out[0], out[1], out[2] = p.RrcRelMaj, p.RrcRelMin, p.BearerID
	binary.LittleEndian.PutUint16(out[3:], p.PhyCellID)
	binary.LittleEndian.PutUint32(out[5:], p.Earfcn)
	binary.LittleEndian.PutUint16(out[9:], p.SfnSubfn)
	out[11] = p.PduNum
	binary.LittleEndian.PutUint32(out[12:], p.SibMask)
	binary.LittleEndian.PutUint16(out[16:], p.Len)
	copy(out[18:], p.Packet)
	return out
}

// RrcV25Packet is the extension header version range [25,..] layout: adds
// a separate NR release major/minor pair ahead of the bearer id.
type RrcV25Packet struct {
	RrcRelMaj, RrcRelMin       uint8
	NrRrcRelMaj, NrRrcRelMin   uint8
	BearerID                   uint8
	PhyCellID                  uint16
	Earfcn                     uint32
	SfnSubfn                   uint16
	PduNum                     uint8
	SibMask                    uint32
	Len                        uint16
	Packet                     []byte
}

func (p *RrcV25Packet) sfnSubfn() uint16 { return p.SfnSubfn }
func (p *RrcV25Packet) PDUNum() uint8    { return p.PduNum }
func (p *RrcV25Packet) EARFCN() uint32   { return p.Earfcn }
func (p *RrcV25Packet) Payload() []byte  { return p.Packet }

func (p *RrcV25Packet) marshalBinary() []byte {
	out := make([]byte, 20+len(p.Packet))
	out[0], out[1] = p.RrcRelMaj, p.RrcRelMin
	out[2], out[3] = p.NrRrcRelMaj, p.NrRrcRelMin
	out[4] = p.BearerID
	binary.LittleEndian.PutUint16(out[5:], p.PhyCellID)
	binary.LittleEndian.PutUint32(out[7:], p.Earfcn)
	binary.LittleEndian.PutUint16(out[11:], p.SfnSubfn)
	out[13] = p.PduNum
	binary.LittleEndian.PutUint32(out[14:], p.SibMask)
	binary.LittleEndian.PutUint16(out[18:], p.Len)
	copy(out[20:], p.Packet)
	return out
}

// InvalidExtHeaderVersionError is returned for the reserved
// ext_header_version 255, which is rejected rather than decoded with the
// [25,..] layout (scenario 1 in spec.md §8).
type InvalidExtHeaderVersionError struct {
	Version uint8
}

func (e *InvalidExtHeaderVersionError) Error() string {
	return fmt.Sprintf("diag: invalid ext header version %d", e.Version)
}

// DecodeLteRrcOtaPacket dispatches on extHeaderVersion per the range table
// in spec.md §3/§4.2: [0,4]->V0, [5,7]->V5, [8,24]->V8, [25,..]->V25,
// except 255, which fails with InvalidExtHeaderVersionError.
func DecodeLteRrcOtaPacket(extHeaderVersion uint8, data []byte) (LteRrcOtaPacket, []byte, error) {
	switch {
	case extHeaderVersion <= 4:
		return decodeRrcV0(data)
	case extHeaderVersion <= 7:
		return decodeRrcV5(data)
	case extHeaderVersion <= 24:
		return decodeRrcV8(data)
	case extHeaderVersion == invalidExtHeaderVersion:
		return nil, data, &InvalidExtHeaderVersionError{Version: extHeaderVersion}
	default:
		return decodeRrcV25(data)
	}
}

// invalidExtHeaderVersion is a sentinel value no real device ever reports;
// capture tooling uses it to exercise the decoder's reject path deliberately.
const invalidExtHeaderVersion uint8 = 255

func decodeRrcV0(data []byte) (*RrcV0Packet, []byte, error) {
	if len(data) < 12 {
		return nil, data, ErrTruncated
	}
	p := &RrcV0Packet{
		RrcRelMaj:  data[0],
		RrcRelMin:  data[1],
		BearerID:   data[2],
		PhyCellID:  binary.LittleEndian.Uint16(data[3:]),
		Earfcn:     binary.LittleEndian.Uint16(data[5:]),
		SfnSubfn:   binary.LittleEndian.Uint16(data[7:]),
		PduNum:     data[9],
		Len:        binary.LittleEndian.Uint16(data[10:]),
	}
	rest := data[12:]
	if uint16(len(rest)) < p.Len {
		return nil, data, ErrTruncated
	}
	p.Packet = rest[:p.Len]
	return p, rest[p.Len:], nil
}

func decodeRrcV5(data []byte) (*RrcV5Packet, []byte, error) {
	if len(data) < 16 {
		return nil, data, ErrTruncated
	}
	p := &RrcV5Packet{
		RrcRelMaj: data[0],
		RrcRelMin: data[1],
		BearerID:  data[2],
		PhyCellID: binary.LittleEndian.Uint16(data[3:]),
		Earfcn:    binary.LittleEndian.Uint16(data[5:]),
		SfnSubfn:  binary.LittleEndian.Uint16(data[7:]),
		PduNum:    data[9],
		SibMask:   binary.LittleEndian.Uint32(data[10:]),
		Len:       binary.LittleEndian.Uint16(data[14:]),
	}
	rest := data[16:]
	if uint16(len(rest)) < p.Len {
		return nil, data, ErrTruncated
	}
	p.Packet = rest[:p.Len]
	return p, rest[p.Len:], nil
}

func decodeRrcV8(data []byte) (*RrcV8Packet, []byte, error) {
	if len(data) < 18 {
		return nil, data, ErrTruncated
	}
	p := &RrcV8Packet{
		RrcRelMaj: data[0],
		RrcRelMin: data[1],
		BearerID:  data[2],
		PhyCellID: binary.LittleEndian.Uint16(data[3:]),
		Earfcn:    binary.LittleEndian.Uint32(data[5:]),
		SfnSubfn:  binary.LittleEndian.Uint16(data[9:]),
		PduNum:    data[11],
		SibMask:   binary.LittleEndian.Uint32(data[12:]),
		Len:       binary.LittleEndian.Uint16(data[16:]),
	}
	rest := data[18:]
	if uint16(len(rest)) < p.Len {
		return nil, data, ErrTruncated
	}
	p.Packet = rest[:p.Len]
	return p, rest[p.Len:], nil
}

func decodeRrcV25(data []byte) (*RrcV25Packet, []byte, error) {
	if len(data) < 20 {
		return nil, data, ErrTruncated
	}
	p := &RrcV25Packet{
		RrcRelMaj:   data[0],
		RrcRelMin:   data[1],
		NrRrcRelMaj: data[2],
		NrRrcRelMin: data[3],
		BearerID:    data[4],
		PhyCellID:   binary.LittleEndian.Uint16(data[5:]),
		Earfcn:      binary.LittleEndian.Uint32(data[7:]),
		SfnSubfn:    binary.LittleEndian.Uint16(data[11:]),
		PduNum:      data[13],
		SibMask:     binary.LittleEndian.Uint32(data[14:]),
		Len:         binary.LittleEndian.Uint16(data[18:]),
	}
	rest := data[20:]
	if uint16(len(rest)) < p.Len {
		return nil, data, ErrTruncated
	}
	p.Packet = rest[:p.Len]
	return p, rest[p.Len:], nil
}
