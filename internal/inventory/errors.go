package inventory

import "fmt"

// MissingPropertyError reports a property snapshot lacking a field required
// to build its typed view.
type MissingPropertyError struct {
	Object   string
	Property string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("object %q has no %s property", e.Object, e.Property)
}
