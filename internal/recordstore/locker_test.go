package recordstore

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"projecttracker/pkg/domain"
)

func TestLockerNestedScopesSkipHeldResources(t *testing.T) {
	l := NewLocker()
	ctx, release, err := l.Acquire(context.Background(), Claims{Write: []string{domain.ResourceProjects, domain.ResourceTasks}})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()
	if held, write := l.Holds(ctx, domain.ResourceTasks); !held || !write {
		t.Fatalf("expected tasks write-held")
	}
	inner, innerRelease, err := l.Acquire(ctx, Claims{Write: []string{domain.ResourceTasks}, Read: []string{domain.ResourceProjects}})
	if err != nil {
		t.Fatalf("nested acquire of held resources should succeed: %v", err)
	}
	innerRelease()
	if inner != ctx {
		t.Fatalf("nested acquire of held resources should return the same context")
	}
	if held, _ := l.Holds(context.Background(), domain.ResourceTasks); held {
		t.Fatalf("background context holds nothing")
	}
}

func TestLockerRejectsOutOfOrderAndUpgrade(t *testing.T) {
	l := NewLocker()
	ctx, release, err := l.Acquire(context.Background(), Claims{Write: []string{domain.ResourceTasks}})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()
	if _, _, err := l.Acquire(ctx, Claims{Read: []string{domain.ResourceProjects}}); !errors.Is(err, ErrLockOrder) {
		t.Fatalf("expected ErrLockOrder, got %v", err)
	}
	if _, r, err := l.Acquire(ctx, Claims{Read: []string{domain.ResourceIssues}}); err != nil {
		t.Fatalf("later resource should be acquirable: %v", err)
	} else {
		r()
	}

	readCtx, readRelease, err := l.Acquire(context.Background(), Claims{Read: []string{domain.ResourceUsers}})
	if err != nil {
		t.Fatalf("acquire read: %v", err)
	}
	defer readRelease()
	if _, _, err := l.Acquire(readCtx, Claims{Write: []string{domain.ResourceUsers}}); !errors.Is(err, ErrLockUpgrade) {
		t.Fatalf("expected ErrLockUpgrade, got %v", err)
	}
}

func TestLockerWritersExclude(t *testing.T) {
	l := NewLocker()
	_, release, err := l.Acquire(context.Background(), Claims{Write: []string{domain.ResourceIssues}})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	acquired := make(chan struct{})
	go func() {
		_, r, err := l.Acquire(context.Background(), Claims{Write: []string{domain.ResourceIssues}})
		if err == nil {
			r()
		}
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatalf("second writer acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatalf("second writer never acquired the released lock")
	}
}

func TestLockerReadersShare(t *testing.T) {
	l := NewLocker()
	_, r1, err := l.Acquire(context.Background(), Claims{Read: []string{domain.ResourceUsers}})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer r1()
	done := make(chan struct{})
	go func() {
		_, r2, err := l.Acquire(context.Background(), Claims{Read: []string{domain.ResourceUsers}})
		if err == nil {
			r2()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("readers should not exclude each other")
	}
}

func TestLockerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewLocker().Acquire(ctx, Claims{Write: []string{"x"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestResourceOrdering(t *testing.T) {
	names := []string{"zeta", domain.ResourcePatchNotes, "alpha", domain.ResourceUsers, domain.ResourceTasks, domain.ResourceProjects, domain.ResourceIssues}
	sort.Slice(names, func(i, j int) bool { return lessResource(names[i], names[j]) })
	want := []string{domain.ResourceUsers, domain.ResourceProjects, domain.ResourceTasks, domain.ResourceIssues, domain.ResourcePatchNotes, "alpha", "zeta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected order %v", names)
		}
	}
}
