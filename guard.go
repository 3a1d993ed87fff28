package litdrive

// ContextGuard reports which kind of execution context is using a Drive.
// The coordinator context orchestrates workers and is not allowed to move
// files through a drive itself.
type ContextGuard interface {
	// IsCoordinator reports whether the calling code runs as the
	// orchestrating process rather than as a worker.
	IsCoordinator() bool
}

// Role is a static ContextGuard.
type Role int

const (
	// Worker marks a worker execution context. Workers may use all
	// drive operations.
	Worker Role = iota
	// Coordinator marks the orchestrating execution context. Drives
	// reject put, get, list and delete from it.
	Coordinator
)

// IsCoordinator implements ContextGuard.
func (r Role) IsCoordinator() bool {
	return r == Coordinator
}

func (r Role) String() string {
	if r == Coordinator {
		return "coordinator"
	}
	return "worker"
}
