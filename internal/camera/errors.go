package camera

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Dispatcher errors.
var (
	// ErrInvalidPayload is returned before anything is sent when a request
	// payload does not have the type its operation declares.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrValueNotAvailable is returned when a value is outside the accepted
	// values the camera reported for the property.
	ErrValueNotAvailable = errors.New("value not available on this camera")

	// ErrNotWritable is returned when the camera reported the property as
	// read-only.
	ErrNotWritable = errors.New("property is not writable")

	// ErrNoValue is returned when the camera did not report a recognizable
	// value for the requested setting.
	ErrNoValue = errors.New("no value reported")
)

// NoSuchMethodError reports an operation with no protocol equivalent.
type NoSuchMethodError struct {
	Op Op
}

func (e *NoSuchMethodError) Error() string {
	return fmt.Sprintf("no such method: %s", e.Op)
}

// AmbiguousValueError reports a value that maps onto several variants the
// camera advertises. The caller must pick one of Candidates and send it as a
// raw still-capture mode.
type AmbiguousValueError struct {
	Value      string
	Candidates []StillCaptureMode
}

func (e *AmbiguousValueError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.String()
	}
	return fmt.Sprintf("%s matches several camera modes: %s", e.Value, strings.Join(names, ", "))
}

func propertyError(code ptp.PropertyCode, err error) error {
	return fmt.Errorf("property 0x%04X: %w", uint16(code), err)
}
