package diagdevice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestBuildMaskScenario implements spec.md section 8 scenario 5 literally:
// accepted = [0xB0C0], class size 0xC30 bits -> bit 0xC0 (position 192) set
// in byte 24, every other bit clear.
func TestBuildMaskScenario(t *testing.T) {
	mask := buildMask(0xc30, []uint16{0xb0c0})

	wantLen := (0xc30 + 7) / 8
	assert.Len(t, mask, int(wantLen))
	for i, b := range mask {
		if i == 24 {
			assert.Equal(t, byte(0x01), b, "byte 24 should have bit 0xc0 set")
			continue
		}
		assert.Equal(t, byte(0), b, "byte %d should be clear", i)
	}
}

func TestBuildMaskCodeOutsideClassIgnored(t *testing.T) {
	mask := buildMask(8, []uint16{0xffff})
	for _, b := range mask {
		assert.Equal(t, byte(0), b)
	}
}
