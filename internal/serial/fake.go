package serial

import (
	"bytes"
	"sync"
	"time"
)

// FakePort is an in-memory Link for tests. Reads consume bytes queued
// with QueueResponse; writes are recorded for assertions.
type FakePort struct {
	mu         sync.Mutex
	closed     bool
	readBuf    bytes.Buffer
	Writes     [][]byte
	StatusByte byte
	StatusErr  error
	WriteErr   error
}

// QueueResponse appends bytes the next reads will consume.
func (f *FakePort) QueueResponse(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readBuf.Write(b)
}

// LastWrite returns the most recent frame written, or nil.
func (f *FakePort) LastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return nil
	}
	return f.Writes[len(f.Writes)-1]
}

func (f *FakePort) WriteFrame(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrPortClosed
	}
	if f.WriteErr != nil {
		return f.WriteErr
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.Writes = append(f.Writes, cp)
	return nil
}

func (f *FakePort) ReadUntil(terminator []byte, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrPortClosed
	}
	data := f.readBuf.Bytes()
	idx := bytes.Index(data, terminator)
	if idx < 0 {
		f.readBuf.Reset()
		return data, ErrTimeout
	}
	out := make([]byte, idx+len(terminator))
	_, _ = f.readBuf.Read(out)
	return out, nil
}

func (f *FakePort) ReadBytes(n int, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrPortClosed
	}
	if f.readBuf.Len() < n {
		out := make([]byte, f.readBuf.Len())
		_, _ = f.readBuf.Read(out)
		return out, ErrShortRead
	}
	out := make([]byte, n)
	_, _ = f.readBuf.Read(out)
	return out, nil
}

func (f *FakePort) Status(timeout time.Duration) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrPortClosed
	}
	if f.StatusErr != nil {
		return 0, f.StatusErr
	}
	return f.StatusByte, nil
}

func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
