package signup

import "fmt"

// UnknownFieldError is returned when an edit names an input the form does
// not have.
type UnknownFieldError struct {
	ID string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown form field %q", e.ID)
}
