package preview1

import "fmt"

// ExitError is raised by proc_exit and unwinds the guest call. Start
// recovers it and reports Code.
type ExitError struct {
	Code uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("guest exited with code %d", e.Code)
}
