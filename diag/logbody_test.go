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
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeLogBodyWcdmaSignallingMessage(t *testing.T) {
	body := WcdmaSignallingMessage{ChannelType: 1, RadioBearer: 2, Msg: []byte{0xaa, 0xbb, 0xcc}}
	wire := marshalLogBody(body)
	decoded, rest, err := decodeLogBody(LogTypeWcdmaSignallingMessage, 0, wire)
	if err != nil {
		t.Fatalf("decodeLogBody: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(decoded, body) {
		t.Fatalf("decoded = %+v, want %+v", decoded, body)
	}
}

func TestDecodeLogBodyNrRrcOtaMessage(t *testing.T) {
	wire := []byte{1, 2, 3, 4, 5}
	decoded, rest, err := decodeLogBody(LogTypeNrRrcOtaMessage, uint16(len(wire)), wire)
	if err != nil {
		t.Fatalf("decodeLogBody: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	want := NrRrcOtaMessage{Msg: wire}
	if !reflect.DeepEqual(decoded, want) {
		t.Fatalf("decoded = %+v, want %+v", decoded, want)
	}
}

func TestDecodeLogBodyIpTrafficSaturatesLength(t *testing.T) {
	// hdr_len less than 8 must saturate to an empty message, not underflow.
	decoded, rest, err := decodeLogBody(LogTypeIpTraffic, 3, []byte{0xde, 0xad})
	if err != nil {
		t.Fatalf("decodeLogBody: %v", err)
	}
	ip, ok := decoded.(IpTraffic)
	if !ok {
		t.Fatalf("decoded = %T, want IpTraffic", decoded)
	}
	if len(ip.Msg) != 0 {
		t.Fatalf("Msg = %v, want empty", ip.Msg)
	}
	if len(rest) != 2 {
		t.Fatalf("leftover = %d, want 2", len(rest))
	}
}

func TestDecodeLogBodyUmtsNasOtaMessage(t *testing.T) {
	body := UmtsNasOtaMessage{IsUplink: 1, Msg: []byte{1, 2, 3, 4}}
	wire := marshalLogBody(body)
	decoded, rest, err := decodeLogBody(LogTypeUmtsNasOtaMessage, 0, wire)
	if err != nil {
		t.Fatalf("decodeLogBody: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(decoded, body) {
		t.Fatalf("decoded = %+v, want %+v", decoded, body)
	}
}

func TestDecodeLogBodyUnknownLogTypeIsError(t *testing.T) {
	decoded, rest, err := decodeLogBody(0xdead, 3, []byte{1, 2, 3})
	var unknownErr *UnknownLogTypeError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want *UnknownLogTypeError", err)
	}
	if unknownErr.LogType != 0xdead {
		t.Fatalf("LogType = %#x, want 0xdead", unknownErr.LogType)
	}
	if len(rest) != 3 {
		t.Fatalf("leftover = %d, want 3", len(rest))
	}
	if decoded != nil {
		t.Fatalf("decoded = %+v, want nil", decoded)
	}
}

// approxEqual compares two float32s with the tolerance the original's
// fixed-point-to-float conversions (rsrp/16.0 and friends) warrant.
func approxEqual(t *testing.T, got, want float32) {
	t.Helper()
	const epsilon = 1e-3
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > epsilon {
		t.Errorf("got %v, want %v", got, want)
	}
}

// Vectors are taken verbatim from
// original_source/lib/src/diag/diaglog/measurement.rs's test_scell_meas,
// the ground truth for this bit layout.
func TestDecodeLteMl1ServingCellMeasurement(t *testing.T) {
	cases := []struct {
		name    string
		hexData string
		version uint8
		pci     uint16
		earfcn  uint32
		rsrp    float32
		rsrq    float32
		rssi    float32
	}{
		{
			"v4",
			"040100009C18D60AECC44E00E2244E00FFFCE30FFED80A0047AD56021D310100A2624100",
			4, 214, 6300, -101.25, -14.0625, -66.625,
		},
		{
			"v5",
			"05010000160d0000d40e00004bb444005444450039e514133149070048adfe019f310100a23f0000",
			5, 212, 3350, -111.3125, -10.4375, -80.875,
		},
		{
			"v5 large earfcn",
			"05010000f424000a4d43434d4e434d41524b45527c307c3236327c317c34323330333233347c7c4d43434d4e434d41524b45520a0a434f504d41524b45527c434f504552524f5232363230317c434f504d41524b45520a006306000057755500577555001d75d4111d290b0048ad7e02dd370100a27f4100",
			5, 333, 167781620, -127.125, -22.25, 2.75,
		},
		{
			"v5 no r9 data",
			"0501000000190000a90d0000d9944d00d9944d006081d5d55d2568bc48ad3e027f314fe0891900e0",
			5, 425, 6400, -102.4375, -8.0, -77.4375,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := hex.DecodeString(tc.hexData)
			if err != nil {
				t.Fatalf("bad test vector: %v", err)
			}
			// decodeLteMl1ServingCellMeasurement reads a fixed-size struct
			// and doesn't need the whole buffer to be consumed: the
			// 120-byte "v5 large earfcn" vector leaves 80 bytes over
			// after the 40 the decoder reads.
			decoded, _, err := decodeLogBody(LogTypeLteMl1ServingCellMeasurement, uint16(len(raw)), raw)
			if err != nil {
				t.Fatalf("decodeLogBody: %v", err)
			}
			meas, ok := decoded.(LteMl1ServingCellMeasurementAndEvaluation)
			if !ok {
				t.Fatalf("decoded = %T, want LteMl1ServingCellMeasurementAndEvaluation", decoded)
			}
			if meas.Version != tc.version {
				t.Errorf("Version = %d, want %d", meas.Version, tc.version)
			}
			if meas.PCI != tc.pci {
				t.Errorf("PCI = %d, want %d", meas.PCI, tc.pci)
			}
			if meas.EARFCN != tc.earfcn {
				t.Errorf("EARFCN = %d, want %d", meas.EARFCN, tc.earfcn)
			}
			approxEqual(t, meas.RSRP(), tc.rsrp)
			approxEqual(t, meas.RSRQ(), tc.rsrq)
			approxEqual(t, meas.RSSI(), tc.rssi)
		})
	}
}

// Vectors are taken verbatim from
// original_source/lib/src/diag/diaglog/measurement.rs's test_ncell_meas.
func TestDecodeLteMl1NeighborCellsMeasurements(t *testing.T) {
	cases := []struct {
		name    string
		hexData string
		version uint8
		earfcn  uint32
		cells   []struct {
			pci  uint16
			rsrp float32
			rssi float32
			rsrq float32
		}
	}{
		{
			"v4",
			"040100009C1847008348E44DDEA44C00CAB4CC32B6D8420300000000FF773301FF77330122020100",
			4, 6300,
			[]struct {
				pci  uint16
				rsrp float32
				rssi float32
				rsrq float32
			}{
				{131, -102.125, -75.75, -17.3125},
			},
		},
		{
			"v5",
			"05010000160d0000480000006cea413bb4433b00b4f3cc33cf3c130200000000ffefc00fffefc00f45081600",
			5, 3350,
			[]struct {
				pci  uint16
				rsrp float32
				rssi float32
				rsrq float32
			}{
				{108, -120.75, -94.6875, -17.0625},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := hex.DecodeString(tc.hexData)
			if err != nil {
				t.Fatalf("bad test vector: %v", err)
			}
			decoded, rest, err := decodeLogBody(LogTypeLteMl1NeighborCellsMeasurements, uint16(len(raw)), raw)
			if err != nil {
				t.Fatalf("decodeLogBody: %v", err)
			}
			if len(rest) != 0 {
				t.Fatalf("leftover = %d bytes, want 0", len(rest))
			}
			meas, ok := decoded.(LteMl1NeighborCellsMeasurements)
			if !ok {
				t.Fatalf("decoded = %T, want LteMl1NeighborCellsMeasurements", decoded)
			}
			if meas.Version != tc.version {
				t.Errorf("Version = %d, want %d", meas.Version, tc.version)
			}
			if meas.EARFCN != tc.earfcn {
				t.Errorf("EARFCN = %d, want %d", meas.EARFCN, tc.earfcn)
			}
			if len(meas.Cells) != len(tc.cells) {
				t.Fatalf("len(Cells) = %d, want %d", len(meas.Cells), len(tc.cells))
			}
			for i, wantCell := range tc.cells {
				gotCell := meas.Cells[i]
				if gotCell.PCI != wantCell.pci {
					t.Errorf("Cells[%d].PCI = %d, want %d", i, gotCell.PCI, wantCell.pci)
				}
				approxEqual(t, gotCell.RSRP(), wantCell.rsrp)
				approxEqual(t, gotCell.RSSI(), wantCell.rssi)
				approxEqual(t, gotCell.RSRQ(), wantCell.rsrq)
			}
		})
	}
}

func TestMarshalLteMl1ServingCellMeasurementRoundTrips(t *testing.T) {
	body := LteMl1ServingCellMeasurementAndEvaluation{
		Version: 5,
		RrcRel:  1,
		PCI:     333,
		EARFCN:  167781620,
		RSRPRaw: 76,
		RSRQRaw: 252,
		RSSIRaw: 2036,
	}
	wire := marshalLogBody(body)
	decoded, rest, err := decodeLogBody(LogTypeLteMl1ServingCellMeasurement, uint16(len(wire)), wire)
	if err != nil {
		t.Fatalf("decodeLogBody: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(decoded, body) {
		t.Fatalf("decoded = %+v, want %+v", decoded, body)
	}
}

func TestMarshalLteMl1NeighborCellsMeasurementsRoundTrips(t *testing.T) {
	body := LteMl1NeighborCellsMeasurements{
		Version: 4,
		EARFCN:  6300,
		Cells: []LteMl1NeighborCell{
			{PCI: 131, RSSIRaw: 554, RSRPRaw: 1246, RSRQRaw: 205},
		},
	}
	wire := marshalLogBody(body)
	decoded, rest, err := decodeLogBody(LogTypeLteMl1NeighborCellsMeasurements, uint16(len(wire)), wire)
	if err != nil {
		t.Fatalf("decodeLogBody: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d, want 0", len(rest))
	}
	if !reflect.DeepEqual(decoded, body) {
		t.Fatalf("decoded = %+v, want %+v", decoded, body)
	}
}
