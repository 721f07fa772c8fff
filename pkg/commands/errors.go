package commands

import "fmt"

// DuplicateCommandError is returned by Register when the name is taken.
type DuplicateCommandError struct {
	Name string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command %q is already registered", e.Name)
}

// ProtectedCommandError is returned when enabling or disabling a command that
// must stay enabled.
type ProtectedCommandError struct {
	Name string
}

func (e *ProtectedCommandError) Error() string {
	return fmt.Sprintf("command %q cannot be enabled or disabled", e.Name)
}

// UnknownCommandError is returned for names the registry does not know.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}
