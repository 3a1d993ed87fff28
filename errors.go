package litdrive

import (
	"fmt"
	"strings"
	"time"
)

// Op names a drive operation for use in error messages.
type Op string

// The drive operations.
const (
	OpPut    Op = "put"
	OpGet    Op = "get"
	OpList   Op = "list"
	OpDelete Op = "delete"
)

// InvalidIdentifierError is returned when a drive identifier cannot be parsed.
type InvalidIdentifierError struct {
	Raw       string
	ID        string
	Protocols []string
}

func (err InvalidIdentifierError) Error() string {
	if len(err.Protocols) > 0 {
		return fmt.Sprintf(
			"invalid drive identifier %q: the identifier needs to start with one of the following protocols: %s",
			err.Raw, strings.Join(err.Protocols, ", "),
		)
	}

	return fmt.Sprintf(
		"invalid drive identifier %q: the id needs to be a single name that uniquely identifies the drive, found %q",
		err.Raw, err.ID,
	)
}

// MissingOwnerError is returned when a mutating operation is attempted on a
// Drive that has no component name bound yet.
type MissingOwnerError struct {
	Op Op
}

func (err MissingOwnerError) Error() string {
	return fmt.Sprintf("the component name needs to be known to %s a path on the drive", err.Op)
}

// ContextError is returned when an operation is attempted from the
// coordinator execution context.
type ContextError struct {
	Op Op
}

func (err ContextError) Error() string {
	direction := "from"
	if err.Op == OpPut {
		direction = "into"
	}

	return fmt.Sprintf("the coordinator isn't allowed to %s files %s a drive", err.Op, direction)
}

// DuplicateFileError is returned by Put when the path is already owned by
// another component and the drive does not allow duplicates.
type DuplicateFileError struct {
	Path      string
	Component string
}

func (err DuplicateFileError) Error() string {
	return fmt.Sprintf("the file %s can't be added as it is already present in the drive (owned by %s)", err.Path, err.Component)
}

// NotFoundError is returned when a path cannot be found. Namespace is set
// when the lookup was scoped to a single component namespace, Waited when
// the operation polled for the path before giving up.
type NotFoundError struct {
	Path      string
	Namespace string
	Waited    time.Duration
}

func (err NotFoundError) Error() string {
	if err.Waited > 0 {
		return fmt.Sprintf("the file %s wasn't found within %s", err.Path, err.Waited)
	}

	if err.Namespace != "" {
		return fmt.Sprintf("the file %s doesn't exist in the component namespace %s", err.Path, err.Namespace)
	}

	return fmt.Sprintf("the file %s doesn't exist in the drive", err.Path)
}

// AmbiguousSourceError is returned by Get when a path exists in several
// component namespaces and no component name was given to disambiguate.
type AmbiguousSourceError struct {
	Path       string
	Components []string
}

func (err AmbiguousSourceError) Error() string {
	return fmt.Sprintf(
		"found files matching %s in several component namespaces: [%s], pass a component name to select one",
		err.Path, strings.Join(err.Components, ", "),
	)
}

// AlreadyExistsError is returned by Get when the local destination already
// exists and overwriting was not requested.
type AlreadyExistsError struct {
	Path string
}

func (err AlreadyExistsError) Error() string {
	return fmt.Sprintf("the destination %s already exists, pass Overwrite(true) to replace it", err.Path)
}

// InvalidPathError is returned when a relative path escapes the drive root
// or is otherwise malformed.
type InvalidPathError struct {
	Path string
}

func (err InvalidPathError) Error() string {
	return fmt.Sprintf("invalid drive path %q: the path needs to be relative to the drive root", err.Path)
}
