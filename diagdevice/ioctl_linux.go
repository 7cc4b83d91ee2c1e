//go:build linux

package diagdevice

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// memoryDeviceMode is the ioctl argument that switches /dev/diag into
// "memory device" logging mode.
const memoryDeviceMode = 2

// diagIoctlSwitchLogging and diagIoctlRemoteDev are the two vendor ioctl
// request numbers the device driver understands; they're the same numeric
// value on every architecture this device ships on.
const (
	diagIoctlSwitchLogging = 7
	diagIoctlRemoteDev     = 32
)

// Open opens the real vendor diagnostic character device at path (usually
// /dev/diag), switches it into memory-device logging mode, and queries
// whether an MDM field is required on outgoing requests.
func Open(path string) (*Driver, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("diagdevice: opening %s: %w", path, err)
	}
	fd := f.Fd()

	if err := enableFrameReadWrite(fd, memoryDeviceMode); err != nil {
		f.Close()
		return nil, err
	}
	useMDM, err := determineUseMDM(fd)
	if err != nil {
		f.Close()
		return nil, err
	}

	return NewDriver(f, useMDM), nil
}

// enableFrameReadWrite tries the scalar ioctl form first; if the kernel
// rejects it, it falls back to the parameter-struct form
// (diag_logging_mode_param_t: {mode, peripheral_mask, logging_mode}).
func enableFrameReadWrite(fd uintptr, mode int32) error {
	if _, _, errno := unix.Syscall6(unix.SYS_IOCTL, fd, diagIoctlSwitchLogging, uintptr(mode), 0, 0, 0); errno == 0 {
		return nil
	}

	params := [3]int32{mode, 0, 1}
	_, _, errno := unix.Syscall6(unix.SYS_IOCTL, fd, diagIoctlSwitchLogging,
		uintptr(unsafe.Pointer(&params)), unsafe.Sizeof(params), 0, 0)
	if errno != 0 {
		return fmt.Errorf("diagdevice: DIAG_IOCTL_SWITCH_LOGGING failed: errno %d", errno)
	}
	return nil
}

// determineUseMDM queries DIAG_IOCTL_REMOTE_DEV; a non-zero result means
// every outgoing request needs an extra MDM field.
func determineUseMDM(fd uintptr) (bool, error) {
	var useMDM int32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, diagIoctlRemoteDev, uintptr(unsafe.Pointer(&useMDM)))
	if errno != 0 {
		return false, fmt.Errorf("diagdevice: DIAG_IOCTL_REMOTE_DEV failed: errno %d", errno)
	}
	return useMDM != 0, nil
}
