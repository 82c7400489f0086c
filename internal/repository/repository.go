// Package repository binds the generic record store to the project-tracking
// entities and keeps projects consistent with the records they own.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"projecttracker/internal/recordstore"
	"projecttracker/pkg/domain"
)

// UpdateOutcome distinguishes a write from an update that changed nothing.
type UpdateOutcome int

const (
	// NoChanges means every patched attribute already held its value; nothing was written.
	NoChanges UpdateOutcome = iota
	// Updated means the record was rewritten.
	Updated
)

func (o UpdateOutcome) String() string {
	if o == Updated {
		return "updated"
	}
	return "no changes"
}

// Patch is a partial update applied to a stored record. Apply reports
// whether any attribute changed.
type Patch[T any] interface {
	Apply(*T) bool
}

// Repository exposes identifier-keyed CRUD over one collection.
type Repository[T any] struct {
	coll    *recordstore.Collection[T]
	idField string
	id      func(*T) *string
	prepare func(*T)
}

func newRepository[T any](coll *recordstore.Collection[T], idField string, id func(*T) *string) *Repository[T] {
	return &Repository[T]{coll: coll, idField: idField, id: id}
}

// Collection returns the underlying record collection.
func (r *Repository[T]) Collection() *recordstore.Collection[T] { return r.coll }

// IdentifierField returns the stored name of the identifier attribute.
func (r *Repository[T]) IdentifierField() string { return r.idField }

// ReadByIdentifier returns the record with identifier id.
func (r *Repository[T]) ReadByIdentifier(ctx context.Context, id string) (T, error) {
	rec, err := r.coll.FindOneByField(ctx, r.idField, id)
	if errors.Is(err, domain.ErrNotFound) {
		return rec, r.notFound(id)
	}
	return rec, err
}

// ListAll returns every record in stored order.
func (r *Repository[T]) ListAll(ctx context.Context) ([]T, error) {
	return r.coll.LoadAll(ctx)
}

// Insert stores record, assigning a fresh identifier when it has none, and
// returns the stored record. Reusing a stored identifier fails with
// domain.ErrDuplicate.
func (r *Repository[T]) Insert(ctx context.Context, record T) (T, error) {
	id := r.id(&record)
	if *id == "" {
		*id = uuid.NewString()
	}
	if r.prepare != nil {
		r.prepare(&record)
	}
	err := r.coll.Mutate(ctx, func(records []T) ([]T, error) {
		if r.indexOf(records, *id) >= 0 {
			return nil, domain.DuplicateError{Entity: r.coll.Entity(), ID: *id}
		}
		return append(records, record), nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return record, nil
}

// DeleteByIdentifier removes the record with identifier id.
func (r *Repository[T]) DeleteByIdentifier(ctx context.Context, id string) error {
	err := r.coll.DeleteOneByField(ctx, r.idField, id)
	if errors.Is(err, domain.ErrNotFound) {
		return r.notFound(id)
	}
	return err
}

// Update applies patch to the record with identifier id under one lock scope
// and returns the resulting record. A patch that changes nothing writes
// nothing and reports NoChanges.
func (r *Repository[T]) Update(ctx context.Context, id string, patch Patch[T]) (UpdateOutcome, T, error) {
	outcome := NoChanges
	var out T
	err := r.coll.Mutate(ctx, func(records []T) ([]T, error) {
		i := r.indexOf(records, id)
		if i < 0 {
			return nil, r.notFound(id)
		}
		if !patch.Apply(&records[i]) {
			out = records[i]
			return nil, recordstore.ErrSkipWrite
		}
		out = records[i]
		outcome = Updated
		return records, nil
	})
	if err != nil {
		var zero T
		return NoChanges, zero, err
	}
	return outcome, out, nil
}

// Replace overwrites the stored record carrying record's identifier.
func (r *Repository[T]) Replace(ctx context.Context, record T) error {
	id := *r.id(&record)
	ok, err := r.coll.UpdateOneByField(ctx, r.idField, id, record)
	if err != nil {
		return err
	}
	if !ok {
		return r.notFound(id)
	}
	return nil
}

func (r *Repository[T]) indexOf(records []T, id string) int {
	for i := range records {
		if *r.id(&records[i]) == id {
			return i
		}
	}
	return -1
}

func (r *Repository[T]) notFound(id string) error {
	return domain.NotFoundError{Entity: r.coll.Entity(), Value: id}
}

// TaskRepository stores tasks keyed by taskUUID.
type TaskRepository = Repository[domain.Task]

// IssueRepository stores issues keyed by issueUUID.
type IssueRepository = Repository[domain.Issue]

// PatchNoteRepository stores patch notes keyed by patchNoteUUID.
type PatchNoteRepository = Repository[domain.PatchNote]

// UserDirectory is the read surface the authentication layer consumes.
type UserDirectory interface {
	ReadByUsername(ctx context.Context, username string) (domain.User, error)
	ReadByIdentifier(ctx context.Context, id string) (domain.User, error)
}

// UserRepository stores user accounts keyed by userUUID.
type UserRepository struct {
	*Repository[domain.User]
}

var _ UserDirectory = (*UserRepository)(nil)

func newUserRepository(coll *recordstore.Collection[domain.User]) *UserRepository {
	repo := newRepository(coll, domain.FieldUserUUID, func(u *domain.User) *string { return &u.UserUUID })
	repo.prepare = func(u *domain.User) {
		if u.Role == "" {
			u.Role = domain.DefaultRole
		}
	}
	return &UserRepository{Repository: repo}
}

// ReadByUsername returns the first user whose username equals name exactly.
func (r *UserRepository) ReadByUsername(ctx context.Context, name string) (domain.User, error) {
	users, err := r.coll.FindAll(ctx, func(u domain.User) bool { return u.Username == name })
	if err != nil {
		return domain.User{}, err
	}
	if len(users) == 0 {
		return domain.User{}, domain.NotFoundError{Entity: domain.EntityUser, Field: "userName", Value: name}
	}
	return users[0], nil
}
