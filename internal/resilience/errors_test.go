package resilience

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("x"), "copy"), true},
		{"wrapped explicit", fmt.Errorf("snapshot: %w", NewTransientError(errors.New("x"), "")), true},
		{"busy", &fs.PathError{Op: "open", Path: "a.eu4", Err: syscall.EBUSY}, true},
		{"again", fmt.Errorf("read: %w", syscall.EAGAIN), true},
		{"not exist", &fs.PathError{Op: "open", Path: "a.eu4", Err: fs.ErrNotExist}, true},
		{"permission", &fs.PathError{Op: "open", Path: "a.eu4", Err: fs.ErrPermission}, false},
		{"plain", errors.New("decode error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientError_Message(t *testing.T) {
	err := NewTransientError(errors.New("busy"), "rename")
	if err.Error() != "rename: busy" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if NewTransientError(errors.New("busy"), "").Error() != "busy" {
		t.Error("expected bare message without op")
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected Unwrap to expose the cause")
	}
}
