package crqa

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("SharedBufferTrigger", ErrCodeProtocolStale, "id mismatch")

	if err.Op != "SharedBufferTrigger" {
		t.Errorf("expected Op=SharedBufferTrigger, got %s", err.Op)
	}
	if err.Code != ErrCodeProtocolStale {
		t.Errorf("expected Code=ErrCodeProtocolStale, got %s", err.Code)
	}

	expected := "crqa: SharedBufferTrigger: id mismatch"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}

func TestErrorDefaultsMessageToCode(t *testing.T) {
	err := NewError("Dial", ErrCodeIPCTransient, "")
	expected := "crqa: Dial: ipc transient failure"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("connection reset")
	err := WrapError("Exchange", ErrCodeIPCTransient, inner)

	if err.Code != ErrCodeIPCTransient {
		t.Errorf("expected Code=ErrCodeIPCTransient, got %s", err.Code)
	}
	if !errors.Is(err, inner) {
		t.Error("expected wrapped error to satisfy errors.Is for inner")
	}
}

func TestWrapErrorPreservesStructuredCode(t *testing.T) {
	original := NewError("Dial", ErrCodeFileLoad, "missing file")
	wrapped := WrapError("LoadSignal", ErrCodeIPCTransient, original)

	if wrapped.Code != ErrCodeFileLoad {
		t.Errorf("expected wrapped code to preserve the original FileLoad code, got %s", wrapped.Code)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("Op", ErrCodeIPCTransient, nil) != nil {
		t.Error("expected WrapError(nil) to return nil")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	a := &Error{Op: "A", Code: ErrCodeMalformedFrame}
	b := &Error{Op: "B", Code: ErrCodeMalformedFrame}

	if !errors.Is(a, b) {
		t.Error("expected two errors with the same code to match via errors.Is")
	}

	c := &Error{Op: "C", Code: ErrCodeFileLoad}
	if errors.Is(a, c) {
		t.Error("expected errors with different codes not to match")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("ValidateFrame", ErrCodeMalformedFrame, "wrong length")

	if !IsCode(err, ErrCodeMalformedFrame) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeFileLoad) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeMalformedFrame) {
		t.Error("IsCode should return false for nil error")
	}
}
