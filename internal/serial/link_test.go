package serial

import (
	"errors"
	"testing"
	"time"
)

func TestFakePortReadUntilConsumesTerminator(t *testing.T) {
	port := &FakePort{}
	port.QueueResponse([]byte("E0\x1b\\leftover"))

	got, err := port.ReadUntil([]byte{0x1b, '\\'}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "E0\x1b\\" {
		t.Fatalf("unexpected read %q", got)
	}

	rest, err := port.ReadBytes(8, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rest) != "leftover" {
		t.Fatalf("unexpected remainder %q", rest)
	}
}

func TestFakePortReadUntilTimesOutWithoutTerminator(t *testing.T) {
	port := &FakePort{}
	port.QueueResponse([]byte("no terminator here"))

	_, err := port.ReadUntil([]byte{0x1b, '\\'}, time.Second)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFakePortShortRead(t *testing.T) {
	port := &FakePort{}
	port.QueueResponse([]byte{0x01, 0x02})

	_, err := port.ReadBytes(4, time.Second)
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestFakePortRejectsUseAfterClose(t *testing.T) {
	port := &FakePort{}
	if err := port.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := port.WriteFrame([]byte{0x05}); !errors.Is(err, ErrPortClosed) {
		t.Fatalf("expected ErrPortClosed, got %v", err)
	}
}

func TestEndsWith(t *testing.T) {
	if !endsWith([]byte("abc\x1b\\"), []byte{0x1b, '\\'}) {
		t.Fatal("expected terminator match")
	}
	if endsWith([]byte("abc"), []byte{0x1b, '\\'}) {
		t.Fatal("unexpected terminator match")
	}
	if endsWith([]byte{0x1b}, []byte{0x1b, '\\'}) {
		t.Fatal("buffer shorter than terminator must not match")
	}
}
