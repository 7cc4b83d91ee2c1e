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
	"time"
)

// timestampEpoch is the diag protocol's timestamp origin, 1980-01-06T00:00:00Z.
var timestampEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Timestamp is the diag protocol's 64-bit log timestamp: the upper 48 bits
// count 1/800-second ticks since timestampEpoch, the lower 16 bits count
// 1/32-chip fractions of a tick.
type Timestamp struct {
	TS uint64
}

const timestampSize = 8

func (t *Timestamp) unmarshalBinary(b []byte) {
	t.TS = binary.LittleEndian.Uint64(b)
}

func (t *Timestamp) marshalBinaryTo(b []byte) {
	binary.LittleEndian.PutUint64(b, t.TS)
}

// Time converts the timestamp to a calendar instant, truncated to
// millisecond precision, matching the floating point accumulation used by
// the diag protocol's reference decoder exactly (ticksUpper*1.25ms +
// ticksLower/40960.0 ms).
func (t Timestamp) Time() time.Time {
	tsUpper := t.TS >> 16
	tsLower := t.TS & 0xffff
	deltaMS := float64(tsUpper)*1.25 + float64(tsLower)/40960.0
	return timestampEpoch.Add(time.Duration(int64(deltaMS)) * time.Millisecond)
}
