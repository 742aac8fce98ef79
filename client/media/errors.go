package media

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrUnsupported      = errors.New("capture not supported")

	ErrRecordingActive = errors.New("a recording is already active")
	ErrCameraStopped   = errors.New("camera is stopped")
	ErrClosed          = errors.New("media manager is closed")
)

// CaptureError reports a failed hardware acquisition. Err is one of
// ErrPermissionDenied, ErrDeviceNotFound or ErrUnsupported.
type CaptureError struct {
	Device string
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Device, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Remedy is the user-facing hint for a capture failure.
func Remedy(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Allow access to the device in your system privacy settings and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "No device was found. Connect one and try again."
	case errors.Is(err, ErrUnsupported):
		return "Capture is not available here. Install ffmpeg or use a supported platform."
	}
	return ""
}

func captureError(device string, err error) error {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrUnsupported):
		return &CaptureError{Device: device, Err: err}
	}
	return &CaptureError{Device: device, Err: fmt.Errorf("%w: %v", ErrUnsupported, err)}
}
