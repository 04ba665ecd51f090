package serial

import (
	"fmt"
	"sync"
	"time"

	bugst "go.bug.st/serial"
)

// openPorts tracks which OS ports are owned. The fiscal driver holds its
// port exclusively; a second Open on the same path is rejected.
var (
	openPortsMu sync.Mutex
	openPorts   = map[string]bool{}
)

// DevicePort is the production Link over a physical serial port,
// 8N1 with no flow control.
type DevicePort struct {
	mu     sync.Mutex
	path   string
	port   bugst.Port
	closed bool
}

// Open claims the port at path and configures it for the fiscal device.
func Open(path string, baud int) (*DevicePort, error) {
	openPortsMu.Lock()
	if openPorts[path] {
		openPortsMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPortBusy, path)
	}
	openPorts[path] = true
	openPortsMu.Unlock()

	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(path, mode)
	if err != nil {
		releasePort(path)
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}
	return &DevicePort{path: path, port: port}, nil
}

func releasePort(path string) {
	openPortsMu.Lock()
	delete(openPorts, path)
	openPortsMu.Unlock()
}

// WriteFrame writes the whole frame and drains the output buffer.
func (p *DevicePort) WriteFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	written := 0
	for written < len(frame) {
		n, err := p.port.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("writing frame: %w", err)
		}
		written += n
	}
	return p.port.Drain()
}

// ReadUntil accumulates bytes until the terminator arrives or the overall
// timeout expires.
func (p *DevicePort) ReadUntil(terminator []byte, timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPortClosed
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, 64)
	one := make([]byte, 1)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf, ErrTimeout
		}
		if err := p.port.SetReadTimeout(remaining); err != nil {
			return buf, fmt.Errorf("setting read timeout: %w", err)
		}
		n, err := p.port.Read(one)
		if err != nil {
			return buf, fmt.Errorf("reading: %w", err)
		}
		if n == 0 {
			return buf, ErrTimeout
		}
		buf = append(buf, one[0])
		if endsWith(buf, terminator) {
			return buf, nil
		}
	}
}

// ReadBytes reads exactly n bytes within the timeout.
func (p *DevicePort) ReadBytes(n int, timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPortClosed
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 0, n)
	chunk := make([]byte, n)
	for len(buf) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf, ErrShortRead
		}
		if err := p.port.SetReadTimeout(remaining); err != nil {
			return buf, fmt.Errorf("setting read timeout: %w", err)
		}
		read, err := p.port.Read(chunk[:n-len(buf)])
		if err != nil {
			return buf, fmt.Errorf("reading: %w", err)
		}
		if read == 0 {
			return buf, ErrShortRead
		}
		buf = append(buf, chunk[:read]...)
	}
	return buf, nil
}

// Status sends ENQ and returns the single status byte.
func (p *DevicePort) Status(timeout time.Duration) (byte, error) {
	if err := p.WriteFrame([]byte{ENQ}); err != nil {
		return 0, err
	}
	b, err := p.ReadBytes(1, timeout)
	if err != nil {
		if len(b) == 0 {
			return 0, ErrTimeout
		}
		return 0, err
	}
	return b[0], nil
}

// Close releases the port ownership.
func (p *DevicePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	releasePort(p.path)
	return p.port.Close()
}
