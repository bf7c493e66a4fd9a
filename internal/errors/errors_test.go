package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"permission", NewPermissionDeniedError("camera access denied", nil), "Camera or gallery permission is required to scan a report."},
		{"capture", NewCaptureError("device busy", nil), "Failed to capture image. Please retake the photo."},
		{"network", NewNetworkError("timeout", nil), "Network error. Please check your connection."},
		{"server", NewServerError(http.StatusInternalServerError, nil), "Server error: 500"},
		{"request setup", NewRequestSetupError("bad url", nil), "An unexpected error occurred."},
		{"wrapped", fmt.Errorf("summarize: %w", NewServerError(413, nil)), "Server error: 413"},
		{"untyped", errors.New("boom"), "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("upload: %w", NewNetworkError("Network error. Please check your connection.", cause))

	if !IsType(err, ErrorTypeNetwork) {
		t.Error("Expected network error type through wrapping")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable with errors.Is")
	}
	if got := GetStatusCode(err); got != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", got)
	}
	if got := GetStatusCode(cause); got != http.StatusInternalServerError {
		t.Errorf("Expected 500 for untyped error, got %d", got)
	}

	appErr, ok := As(err)
	if !ok || appErr.Cause != cause {
		t.Fatalf("Expected AppError with cause, got %v", appErr)
	}
	if appErr.Error() != "network: Network error. Please check your connection. (caused by: connection refused)" {
		t.Errorf("Unexpected message %q", appErr.Error())
	}
}

func TestServerErrorStatus(t *testing.T) {
	err := NewServerError(http.StatusServiceUnavailable, nil)
	if err.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected upstream status 503, got %d", err.Status)
	}
	if err.Error() != "server: Server error: 503" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
