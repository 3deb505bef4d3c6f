package referenceframe

import (
	"github.com/pkg/errors"
)

// ErrTransformUnavailable is returned when no chain of frames links a source and destination
// frame within the allowed wait.
var ErrTransformUnavailable = errors.New("transform unavailable")

// NewParentFrameMissingError returns an error indicating that a frame is missing a parent.
func NewParentFrameMissingError() error {
	return errors.New("parent frame is nil")
}

// NewFrameMissingError returns an error indicating that the given frame is not in the frame system.
func NewFrameMissingError(frameName string) error {
	return errors.Errorf("frame with name %q not in frame system", frameName)
}

// NewFrameAlreadyExistsError returns an error indicating that a frame of the given name already exists.
func NewFrameAlreadyExistsError(frameName string) error {
	return errors.Errorf("frame with name %q already in frame system", frameName)
}
