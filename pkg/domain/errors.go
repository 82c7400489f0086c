package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by the record store and the repositories. Callers
// match with errors.Is; the typed errors below carry the details.
var (
	// ErrStorageUnavailable reports a resource that could not be read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCorruptFormat reports persisted content that cannot be parsed.
	ErrCorruptFormat = errors.New("corrupt format")
	// ErrSchemaMismatch reports a lookup by a field the record type does not have.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrNotFound reports an identifier or field value with no matching record.
	ErrNotFound = errors.New("not found")
	// ErrIntegrityViolation reports a project that references a missing record.
	ErrIntegrityViolation = errors.New("integrity violation")
	// ErrDuplicate reports an insert whose identifier is already stored, or a
	// child already owned by another project.
	ErrDuplicate = errors.New("duplicate identifier")
)

// NotFoundError is returned when a lookup matches no record.
type NotFoundError struct {
	Entity EntityType
	Field  string
	Value  any
}

func (e NotFoundError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s %v not found", e.Entity, e.Value)
	}
	return fmt.Sprintf("%s with %s=%v not found", e.Entity, e.Field, e.Value)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateError is returned when an insert reuses a stored identifier.
type DuplicateError struct {
	Entity EntityType
	ID     string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// Is matches ErrDuplicate.
func (e DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// OwnershipError is returned when a child is claimed by a project while
// another project already lists it. It matches ErrDuplicate.
type OwnershipError struct {
	Kind    ChildKind
	ChildID string
	OwnerID string
}

func (e OwnershipError) Error() string {
	return fmt.Sprintf("%s %s is already owned by project %s", e.Kind, e.ChildID, e.OwnerID)
}

// Is matches ErrDuplicate.
func (e OwnershipError) Is(target error) bool { return target == ErrDuplicate }

// SchemaError is returned when a field name is not exposed by a record type.
type SchemaError struct {
	Resource string
	Field    string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("resource %s has no field %q", e.Resource, e.Field)
}

// Is matches ErrSchemaMismatch.
func (e SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }

// StorageError wraps a backend failure for one resource. Kind is either
// ErrStorageUnavailable or ErrCorruptFormat.
type StorageError struct {
	Resource string
	Op       string
	Kind     error
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Resource, e.Kind, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause.
func (e *StorageError) Unwrap() []error { return []error{e.Kind, e.Err} }

// IntegrityError reports a dangling reference from a project.
type IntegrityError struct {
	ProjectID string
	Kind      ChildKind
	ChildID   string
	// Owner is set when the dangling reference is the project's owner.
	Owner bool
}

func (e IntegrityError) Error() string {
	if e.Owner {
		return fmt.Sprintf("project %s references missing owner %s", e.ProjectID, e.ChildID)
	}
	return fmt.Sprintf("project %s references missing %s %s", e.ProjectID, e.Kind, e.ChildID)
}

// Is matches ErrIntegrityViolation.
func (e IntegrityError) Is(target error) bool { return target == ErrIntegrityViolation }

// CascadeError reports a project delete that stopped before removing the
// project record. Deleted lists the children removed before the failure.
type CascadeError struct {
	ProjectID string
	Deleted   []string
	Err       error
}

func (e *CascadeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cascade delete of project %s", e.ProjectID)
	if len(e.Deleted) > 0 {
		fmt.Fprintf(&b, " (after removing %d children)", len(e.Deleted))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *CascadeError) Unwrap() error { return e.Err }
