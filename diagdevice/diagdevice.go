// Package diagdevice drives the vendor diagnostic character device:
// opening it, switching it into memory-device logging mode, configuring
// which log codes it emits, and turning its read stream into a sequence
// of diag.MessagesContainer values.
package diagdevice

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/EFForg/rayhunter-sub000/diag"
	"github.com/EFForg/rayhunter-sub000/hdlc"
)

// BufferLen is the read buffer size, large enough to hold one container
// off the real device per spec (>= 10 MiB).
const BufferLen = 1024 * 1024 * 10

// maxConsecutiveReadErrors bounds how many back-to-back read failures the
// driver tolerates before surrendering; repeated failures signal an
// unrecoverable device state.
const maxConsecutiveReadErrors = 10

// Device is anything the driver can read containers from and write
// requests to. The real /dev/diag path and a simulated serial-backed
// path (see simulated.go) both satisfy it.
type Device interface {
	io.ReadWriteCloser
}

// ErrNoResponse is returned when a request gets no matching response
// before the container stream runs dry.
var ErrNoResponse = errors.New("diagdevice: no response received for request")

// RequestFailedError is returned when a request's response carries a
// non-zero status.
type RequestFailedError struct {
	Status uint32
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("diagdevice: request failed with status %d", e.Status)
}

// Driver wraps a Device with the read buffer and request/response flow
// described in the diag device driver component.
type Driver struct {
	dev                   Device
	readBuf               []byte
	useMDM                bool
	consecutiveReadErrors int
}

// NewDriver wraps an already-opened Device. useMDM controls whether an
// extra MDM field is included on every outgoing request, mirroring the
// behavior the real device's DIAG_IOCTL_REMOTE_DEV query would yield.
func NewDriver(dev Device, useMDM bool) *Driver {
	return &Driver{
		dev:     dev,
		readBuf: make([]byte, BufferLen),
		useMDM:  useMDM,
	}
}

// Close releases the underlying device.
func (d *Driver) Close() error { return d.dev.Close() }

// NextContainer blocks until it can return one parsed MessagesContainer,
// retrying zero-length reads the same way the device itself does. It
// surfaces a read error immediately but gives the caller a chance to
// continue the loop; after maxConsecutiveReadErrors in a row it returns a
// wrapped error signalling the device is unrecoverable.
func (d *Driver) NextContainer() (*diag.MessagesContainer, error) {
	for {
		n, err := d.readOnce()
		if err != nil {
			d.consecutiveReadErrors++
			if d.consecutiveReadErrors >= maxConsecutiveReadErrors {
				return nil, fmt.Errorf("diagdevice: %d consecutive read failures, giving up: %w", d.consecutiveReadErrors, err)
			}
			return nil, fmt.Errorf("diagdevice: read failed: %w", err)
		}
		d.consecutiveReadErrors = 0
		if n == 0 {
			continue
		}
		container, leftover, err := diag.UnmarshalMessagesContainer(d.readBuf[:n])
		if err != nil {
			return nil, fmt.Errorf("diagdevice: parsing messages container: %w", err)
		}
		if len(leftover) > 0 {
			log.Warnf("diagdevice: %d leftover bytes when parsing messages container", len(leftover))
		}
		return container, nil
	}
}

func (d *Driver) readOnce() (int, error) {
	n, err := d.dev.Read(d.readBuf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// writeRequest serializes req, HDLC-encapsulates it, wraps it in a
// RequestContainer, and writes it to the device. Writing zero bytes with
// no error is expected on the real device (the kernel driver always
// reports it that way) and is not treated as a failure; only a genuine
// write error is.
func (d *Driver) writeRequest(req diag.Request) error {
	encapsulated := hdlc.Encapsulate(req.MarshalBinary())
	container := &diag.RequestContainer{
		DataType:             diag.DataTypeUserSpace,
		UseMDM:               d.useMDM,
		HdlcEncapsulatedData: encapsulated,
	}
	if _, err := d.dev.Write(container.MarshalBinary()); err != nil {
		return fmt.Errorf("diagdevice: writing request: %w", err)
	}
	return nil
}

// readResponses blocks until it gets the next user-space container and
// decodes its submessages.
func (d *Driver) readResponses() ([]diag.ParsedMessage, error) {
	for {
		container, err := d.NextContainer()
		if err != nil {
			return nil, err
		}
		if container.DataType != diag.DataTypeUserSpace {
			continue
		}
		return container.IntoMessages(), nil
	}
}

// RetrieveIDRanges sends LogConfig::RetrieveIdRanges and returns the
// 16 per-class bitmask sizes.
func (d *Driver) RetrieveIDRanges() ([16]uint32, error) {
	var zero [16]uint32
	req := diag.LogConfigRetrieveIDRangesRequest{}
	if err := d.writeRequest(req); err != nil {
		return zero, err
	}
	for {
		msgs, err := d.readResponses()
		if err != nil {
			return zero, err
		}
		for _, parsed := range msgs {
			if parsed.Err != nil {
				log.Errorf("diagdevice: error parsing message: %v", parsed.Err)
				continue
			}
			resp, ok := parsed.Message.(diag.ResponseMessage)
			if !ok {
				continue
			}
			ranges, ok := resp.Payload.(diag.LogConfigRetrieveIDRangesResponse)
			if !ok {
				continue
			}
			if resp.Status != 0 {
				return zero, &RequestFailedError{Status: resp.Status}
			}
			return ranges.LogMaskSizes, nil
		}
	}
}

// SetLogMask sends LogConfig::SetMask for logType, enabling exactly the
// well-known log codes that fall within that class.
func (d *Driver) SetLogMask(logType, logMaskBitsize uint32) error {
	req := diag.BuildLogMaskRequest(logType, logMaskBitsize, diag.LogCodesForRawPacketLogging)
	if err := d.writeRequest(req); err != nil {
		return err
	}
	for {
		msgs, err := d.readResponses()
		if err != nil {
			return err
		}
		for _, parsed := range msgs {
			if parsed.Err != nil {
				log.Errorf("diagdevice: error parsing message: %v", parsed.Err)
				continue
			}
			resp, ok := parsed.Message.(diag.ResponseMessage)
			if !ok {
				continue
			}
			if _, ok := resp.Payload.(diag.LogConfigSetMaskResponse); !ok {
				continue
			}
			if resp.Status != 0 {
				return &RequestFailedError{Status: resp.Status}
			}
			return nil
		}
	}
}

// ConfigureLogs retrieves the per-class mask sizes and enables every
// class the device reports a non-zero size for.
func (d *Driver) ConfigureLogs() error {
	log.Infof("diagdevice: retrieving logging capabilities...")
	sizes, err := d.RetrieveIDRanges()
	if err != nil {
		return fmt.Errorf("diagdevice: retrieving id ranges: %w", err)
	}
	for logType, bitsize := range sizes {
		if bitsize == 0 {
			continue
		}
		if err := d.SetLogMask(uint32(logType), bitsize); err != nil {
			return fmt.Errorf("diagdevice: setting log mask for class %d: %w", logType, err)
		}
		log.Infof("diagdevice: enabled logging for log type %d", logType)
	}
	return nil
}
