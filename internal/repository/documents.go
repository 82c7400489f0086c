package repository

import (
	"context"

	"projecttracker/internal/blob"
	"projecttracker/internal/recordstore"
	"projecttracker/pkg/domain"
)

// Document describes the stored document behind one resource.
type Document struct {
	Resource string
	Key      string
	// Stored is false while the resource has never been written.
	Stored bool
	Info   blob.Info
}

// Driver reports the backend the Set stores its documents in.
func (s *Set) Driver() blob.Driver { return s.store.Driver() }

func (s *Set) scope(ctx context.Context, claims recordstore.Claims) (context.Context, func(), error) {
	if !s.locking {
		return ctx, func() {}, nil
	}
	return s.locker.Acquire(ctx, claims)
}

// Documents lists the document of every resource in lock order.
func (s *Set) Documents(ctx context.Context) ([]Document, error) {
	ctx, release, err := s.scope(ctx, recordstore.Claims{Read: domain.ResourceOrder})
	if err != nil {
		return nil, err
	}
	defer release()
	infos, err := s.store.List(ctx, "")
	if err != nil {
		return nil, &domain.StorageError{Resource: "documents", Op: "list", Kind: domain.ErrStorageUnavailable, Err: err}
	}
	byKey := make(map[string]blob.Info, len(infos))
	for _, info := range infos {
		byKey[info.Key] = info
	}
	out := make([]Document, 0, len(domain.ResourceOrder))
	for _, resource := range domain.ResourceOrder {
		key := s.keys[resource]
		info, ok := byKey[key]
		out = append(out, Document{Resource: resource, Key: key, Stored: ok, Info: info})
	}
	return out, nil
}

// Purge deletes the document of every resource and returns the resources
// that had one. Documents already removed stay removed when a later delete
// fails.
func (s *Set) Purge(ctx context.Context) ([]string, error) {
	ctx, release, err := s.scope(ctx, recordstore.Claims{Write: domain.ResourceOrder})
	if err != nil {
		return nil, err
	}
	defer release()
	removed := []string{}
	for _, resource := range domain.ResourceOrder {
		existed, err := s.store.Delete(ctx, s.keys[resource])
		if err != nil {
			return removed, &domain.StorageError{Resource: resource, Op: "delete", Kind: domain.ErrStorageUnavailable, Err: err}
		}
		if existed {
			removed = append(removed, resource)
		}
	}
	return removed, nil
}
