package gpio

import (
	"errors"
	"testing"
)

func TestFakePinIdlesHigh(t *testing.T) {
	f := NewFakePin()

	high, err := f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !high {
		t.Error("expected released pin to read high")
	}
}

func TestFakePinPressRelease(t *testing.T) {
	f := NewFakePin()

	f.Press()
	high, _ := f.Read()
	if high {
		t.Error("expected pressed pin to read low")
	}

	f.Release()
	high, _ = f.Read()
	if !high {
		t.Error("expected released pin to read high")
	}

	if f.Reads != 2 {
		t.Errorf("Reads: got %d, want 2", f.Reads)
	}
}

func TestFakePinError(t *testing.T) {
	f := NewFakePin()
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	if err == nil {
		t.Error("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakePinClose(t *testing.T) {
	f := NewFakePin()
	if f.Closed {
		t.Error("should not be closed initially")
	}

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
