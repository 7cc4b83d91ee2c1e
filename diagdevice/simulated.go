package diagdevice

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSimulated opens a serial-backed stand-in for the real vendor
// character device, the same way sa53fw/mac.Init opens the MAC53 UART:
// a fixed baud rate, no flow control, no ioctl dance. It backs the
// daemon's -simulated flag and the rayhunter-check simulate subcommand,
// which points it at a loopback or pty path feeding canned diag traffic.
func OpenSimulated(path string, baudRate int) (*Driver, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("diagdevice: opening simulated device %s: %w", path, err)
	}
	// The simulated path never needs the MDM field real MDM9x-class
	// modems require on outgoing requests.
	return NewDriver(port, false), nil
}
