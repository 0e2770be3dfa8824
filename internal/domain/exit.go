package domain

import "fmt"

// ExitClass classifies how an agent process ended
type ExitClass string

const (
	ExitClean      ExitClass = "clean"
	ExitNonzero    ExitClass = "nonzero"
	ExitSignal     ExitClass = "signal"
	ExitSupervisor ExitClass = "killed-by-supervisor"
)

// ExitStatus is the structured exit notification reported exactly once
// per process. Classification is explicit: text heuristics over output
// content are never a correctness signal.
type ExitStatus struct {
	Class  ExitClass
	Code   int
	Signal string
}

// Crashed reports whether the exit should move the session to error.
func (e ExitStatus) Crashed() bool {
	return e.Class == ExitNonzero || e.Class == ExitSignal
}

// Diagnostic returns a human-readable description of the exit.
func (e ExitStatus) Diagnostic() string {
	switch e.Class {
	case ExitClean:
		return "process exited cleanly"
	case ExitNonzero:
		return fmt.Sprintf("process exited with code %d", e.Code)
	case ExitSignal:
		return fmt.Sprintf("process terminated by signal %s", e.Signal)
	case ExitSupervisor:
		return "process killed by supervisor"
	}
	return "unknown exit"
}
