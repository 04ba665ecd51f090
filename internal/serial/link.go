package serial

import (
	"errors"
	"time"
)

// ENQ is the status-poll byte understood by the fiscal device.
const ENQ byte = 0x05

var (
	// ErrTimeout marks an I/O deadline expiry. The caller decides on retries.
	ErrTimeout = errors.New("serial: timeout")
	// ErrPortClosed marks use of a closed session.
	ErrPortClosed = errors.New("serial: port closed")
	// ErrShortRead marks a read that returned fewer bytes than requested.
	ErrShortRead = errors.New("serial: short read")
	// ErrPortBusy marks a second open attempt on an owned port.
	ErrPortBusy = errors.New("serial: port already open")
)

// Link is the framed byte surface the fiscal driver talks through. One
// outstanding operation per physical port; implementations serialize
// internally. Business-level retries live above this layer.
type Link interface {
	// WriteFrame writes the whole frame and flushes.
	WriteFrame(frame []byte) error
	// ReadUntil reads until the terminator sequence appears or the
	// timeout expires. The returned slice includes the terminator.
	ReadUntil(terminator []byte, timeout time.Duration) ([]byte, error)
	// ReadBytes reads exactly n bytes.
	ReadBytes(n int, timeout time.Duration) ([]byte, error)
	// Status sends ENQ and returns the one-byte device status.
	Status(timeout time.Duration) (byte, error)
	Close() error
}

// endsWith reports whether buf ends with the terminator sequence.
func endsWith(buf, terminator []byte) bool {
	if len(terminator) == 0 || len(buf) < len(terminator) {
		return false
	}
	tail := buf[len(buf)-len(terminator):]
	for i := range terminator {
		if tail[i] != terminator[i] {
			return false
		}
	}
	return true
}
