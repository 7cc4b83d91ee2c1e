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
	"errors"
	"reflect"
	"testing"

	"github.com/EFForg/rayhunter-sub000/hdlc"
)

func TestDecodeLteRrcOtaPacketInvalidExtHeaderVersion(t *testing.T) {
	_, _, err := DecodeLteRrcOtaPacket(255, []byte{1, 2, 3, 4})
	var invalidErr *InvalidExtHeaderVersionError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("err = %v, want *InvalidExtHeaderVersionError", err)
	}
	if invalidErr.Version != 255 {
		t.Fatalf("Version = %d, want 255", invalidErr.Version)
	}
}

func TestDecodeLteRrcOtaPacketV25IsNotRejected(t *testing.T) {
	p := &RrcV25Packet{
		RrcRelMaj: 1, RrcRelMin: 2, NrRrcRelMaj: 3, NrRrcRelMin: 4, BearerID: 5,
		PhyCellID: 100, Earfcn: 99999, SfnSubfn: 321, PduNum: 9, SibMask: 0xabcd,
		Len: 3, Packet: []byte{0xaa, 0xbb, 0xcc},
	}
	decoded, rest, err := DecodeLteRrcOtaPacket(254, p.marshalBinary())
	if err != nil {
		t.Fatalf("DecodeLteRrcOtaPacket: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(decoded, p) {
		t.Fatalf("decoded = %+v, want %+v", decoded, p)
	}
}

func TestRrcV0RoundTrip(t *testing.T) {
	p := &RrcV0Packet{
		RrcRelMaj: 9, RrcRelMin: 1, BearerID: 2, PhyCellID: 55,
		Earfcn: 1800, SfnSubfn: 512, PduNum: 4, Len: 2, Packet: []byte{0x01, 0x02},
	}
	decoded, rest, err := DecodeLteRrcOtaPacket(0, p.marshalBinary())
	if err != nil {
		t.Fatalf("DecodeLteRrcOtaPacket: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(decoded, p) {
		t.Fatalf("decoded = %+v, want %+v", decoded, p)
	}
}

func TestRrcV5RoundTrip(t *testing.T) {
	p := &RrcV5Packet{
		RrcRelMaj: 9, RrcRelMin: 1, BearerID: 2, PhyCellID: 55,
		Earfcn: 1800, SfnSubfn: 512, PduNum: 4, SibMask: 0x1, Len: 2, Packet: []byte{0x01, 0x02},
	}
	decoded, rest, err := DecodeLteRrcOtaPacket(6, p.marshalBinary())
	if err != nil {
		t.Fatalf("DecodeLteRrcOtaPacket: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(decoded, p) {
		t.Fatalf("decoded = %+v, want %+v", decoded, p)
	}
}

// TestEncapsulatedLteRrcOtaMessageRoundTrip takes a Message all the way
// through HDLC encapsulation and back, mirroring get_test_message/
// test_containers_with_multiple_messages from the original suite.
func TestEncapsulatedLteRrcOtaMessageRoundTrip(t *testing.T) {
	payload := []byte{1}
	msg := LogMessage{
		PendingMsgs: 0,
		OuterLength: 31 + uint16(len(payload)),
		InnerLength: 31 + uint16(len(payload)),
		LogType:     LogTypeLteRrcOtaMessage,
		Timestamp:   Timestamp{TS: 72659535985485082},
		Body: LteRrcOtaMessage{
			ExtHeaderVersion: 20,
			Packet: &RrcV8Packet{
				RrcRelMaj: 14, RrcRelMin: 48, BearerID: 0, PhyCellID: 160,
				Earfcn: 2050, SfnSubfn: 4057, PduNum: 5, SibMask: 0,
				Len: uint16(len(payload)), Packet: payload,
			},
		},
	}
	serialized := msg.MarshalBinary()
	encapsulated := hdlc.Encapsulate(serialized)

	decapsulated, err := hdlc.Decapsulate(encapsulated)
	if err != nil {
		t.Fatalf("hdlc.Decapsulate: %v", err)
	}
	got, rest, err := DecodeMessage(decapsulated)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("got = %+v, want %+v", got, msg)
	}
}
