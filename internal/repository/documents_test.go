package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"projecttracker/internal/blob"
	"projecttracker/internal/recordstore"
	"projecttracker/pkg/domain"
)

func TestDocumentsAndPurge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if f.set.Driver() != blob.DriverMemory {
		t.Fatalf("unexpected driver %q", f.set.Driver())
	}
	if _, err := f.set.Tasks.Insert(ctx, domain.Task{TaskUUID: "loose"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := f.set.Users.Insert(ctx, domain.User{UserUUID: "u2"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	docs, err := f.set.Documents(ctx)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(docs) != len(domain.ResourceOrder) {
		t.Fatalf("expected one document per resource, got %d", len(docs))
	}
	for i, d := range docs {
		if d.Resource != domain.ResourceOrder[i] || d.Key != d.Resource+".json" {
			t.Fatalf("unexpected document %+v", d)
		}
		if !d.Stored || d.Info.Key != d.Key || d.Info.Size == 0 {
			t.Fatalf("%s should be stored: %+v", d.Resource, d)
		}
	}

	removed, err := f.set.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if strings.Join(removed, ",") != strings.Join(domain.ResourceOrder, ",") {
		t.Fatalf("unexpected removed %v", removed)
	}
	docs, _ = f.set.Documents(ctx)
	for _, d := range docs {
		if d.Stored {
			t.Fatalf("%s survived purge", d.Resource)
		}
	}
	if users, err := f.set.Users.ListAll(ctx); err != nil || len(users) != 0 {
		t.Fatalf("purged store should read empty: %v %v", users, err)
	}
	if again, err := f.set.Purge(ctx); err != nil || len(again) != 0 {
		t.Fatalf("second purge should remove nothing: %v %v", again, err)
	}
}

func TestDocumentsStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.InjectFault(func(op blob.MemoryOp, key string) error {
		if op == blob.MemoryList || (op == blob.MemoryDelete && key == "tasks.json") {
			return errors.New("unplugged")
		}
		return nil
	})
	if _, err := f.set.Documents(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	removed, err := f.set.Purge(ctx)
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Resource != domain.ResourceTasks {
		t.Fatalf("expected tasks delete failure, got %v", err)
	}
	if strings.Join(removed, ",") != "users,projects" {
		t.Fatalf("unexpected removed %v", removed)
	}
}

func TestSetsSharingALockerExcludeEachOther(t *testing.T) {
	ctx := context.Background()
	first, store := newTestSet(t)
	second := NewSet(store, WithLocker(first.Locker()))
	if second.Locker() != first.Locker() {
		t.Fatalf("second set should use the shared locker")
	}

	_, release, err := first.Locker().Acquire(ctx, recordstore.Claims{Write: []string{domain.ResourceUsers}})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := second.Users.Insert(ctx, domain.User{UserUUID: "u1"})
		done <- err
	}()
	select {
	case err := <-done:
		t.Fatalf("insert finished while the shared lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := first.Users.ReadByIdentifier(ctx, "u1"); err != nil {
		t.Fatalf("first set should see the insert: %v", err)
	}
}
