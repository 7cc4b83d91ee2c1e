package diag

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

// dumpMessage prints a decoded Message the way pshark/main.go dumps decoded
// packets during manual inspection: useful when a fixture-based test fails
// and the assertion diff alone doesn't make the wrong field obvious.
func dumpMessage(t *testing.T, msg Message) {
	t.Helper()
	spew.Dump(msg)
}
