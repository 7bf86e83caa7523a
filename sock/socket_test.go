package sock

import (
	"testing"

	"github.com/momentics/hioload-ws/addr"
)

func TestCreateBindListenAccept(t *testing.T) {
	s, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	if err := s.SetReuseAddr(true); err != nil {
		t.Fatalf("SetReuseAddr: %v", err)
	}
	if err := s.Bind(addr.Any(0)); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := s.Listen(0); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if s.State() != StateListening {
		t.Errorf("state = %v, want listening", s.State())
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
}

func TestSendZeroBytesIsNoop(t *testing.T) {
	s, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()
	n, err := s.Send(nil)
	if err != nil || n != 0 {
		t.Errorf("Send(nil) = (%d, %v), want (0, nil)", n, err)
	}
}
