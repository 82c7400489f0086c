package repository

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"projecttracker/internal/blob"
	"projecttracker/internal/config"
	"projecttracker/pkg/domain"
)

func newTestSet(t *testing.T, opts ...Option) (*Set, *blob.Memory) {
	t.Helper()
	store := blob.NewMemory()
	return NewSet(store, opts...), store
}

func raw(t *testing.T, store blob.Store, key string) []byte {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return b
}

func TestInsertReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	set, _ := newTestSet(t)

	user, err := set.Users.Insert(ctx, domain.User{Username: "alyssa", Password: "pw", Role: "admin"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if user.UserUUID == "" {
		t.Fatalf("identifier not assigned")
	}
	if got, err := set.Users.ReadByIdentifier(ctx, user.UserUUID); err != nil || got != user {
		t.Fatalf("user round trip: %+v %v", got, err)
	}

	task, err := set.Tasks.Insert(ctx, domain.Task{Title: "t", Deadline: domain.NewCivilDate(2024, time.June, 1), Status: domain.StatusInProgress})
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if got, err := set.Tasks.ReadByIdentifier(ctx, task.TaskUUID); err != nil || got != task {
		t.Fatalf("task round trip: %+v %v", got, err)
	}

	issue, err := set.Issues.Insert(ctx, domain.Issue{Title: "i", Severity: domain.SeverityMajor})
	if err != nil {
		t.Fatalf("insert issue: %v", err)
	}
	if got, err := set.Issues.ReadByIdentifier(ctx, issue.IssueUUID); err != nil || got != issue {
		t.Fatalf("issue round trip: %+v %v", got, err)
	}
	if issue.Status != domain.StatusTodo {
		t.Fatalf("issue status should default to TODO, got %q", issue.Status)
	}

	note, err := set.PatchNotes.Insert(ctx, domain.PatchNote{PatchNoteUUID: "n1", Title: "n", Date: domain.NewCivilDate(2024, time.July, 4), Version: "1.0.0"})
	if err != nil {
		t.Fatalf("insert note: %v", err)
	}
	if note.PatchNoteUUID != "n1" {
		t.Fatalf("explicit identifier must be kept, got %q", note.PatchNoteUUID)
	}
	if got, err := set.PatchNotes.ReadByIdentifier(ctx, "n1"); err != nil || got != note {
		t.Fatalf("note round trip: %+v %v", got, err)
	}

	project, err := set.Projects.Create(ctx, domain.Project{
		Title:      "tracker",
		StartDate:  domain.NewCivilDate(2024, time.May, 1),
		UserUUID:   user.UserUUID,
		TaskUUIDs:  []string{task.TaskUUID},
		IssueUUIDs: []string{issue.IssueUUID},
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	stored, err := set.Projects.ReadStored(ctx, project.ProjectUUID)
	if err != nil {
		t.Fatalf("read stored: %v", err)
	}
	if stored.Title != "tracker" || stored.StartDate != project.StartDate || stored.User != nil || len(stored.PatchNoteUUIDs) != 0 || stored.PatchNoteUUIDs == nil {
		t.Fatalf("unexpected stored project %+v", stored)
	}
	hydrated, err := set.Projects.ReadByIdentifier(ctx, project.ProjectUUID)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	if hydrated.User == nil || *hydrated.User != user || len(hydrated.Tasks) != 1 || hydrated.Tasks[0] != task || hydrated.Issues[0] != issue {
		t.Fatalf("unexpected hydrated project %+v", hydrated)
	}
	if hydrated.PatchNotes == nil || len(hydrated.PatchNotes) != 0 {
		t.Fatalf("empty child list should hydrate as empty slice")
	}
}

func TestInsertDefaultsAndDuplicates(t *testing.T) {
	ctx := context.Background()
	set, _ := newTestSet(t)
	u, err := set.Users.Insert(ctx, domain.User{UserUUID: "u1", Username: "bob"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if u.Role != domain.DefaultRole {
		t.Fatalf("expected default role, got %q", u.Role)
	}
	if _, err := set.Users.Insert(ctx, domain.User{UserUUID: "u1", Username: "other"}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	users, _ := set.Users.ListAll(ctx)
	if len(users) != 1 {
		t.Fatalf("duplicate insert must not write: %+v", users)
	}
}

func TestReadByUsernameIsExact(t *testing.T) {
	ctx := context.Background()
	set, _ := newTestSet(t)
	if _, err := set.Users.Insert(ctx, domain.User{Username: "Alyssa"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var dir UserDirectory = set.Users
	if _, err := dir.ReadByUsername(ctx, "alyssa"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("lookup must be case-sensitive, got %v", err)
	}
	got, err := dir.ReadByUsername(ctx, "Alyssa")
	if err != nil || got.Username != "Alyssa" {
		t.Fatalf("unexpected user %+v %v", got, err)
	}
	if _, err := dir.ReadByIdentifier(ctx, got.UserUUID); err != nil {
		t.Fatalf("read by id: %v", err)
	}
}

func TestUpdateWithEmptyPatchLeavesBytesUnchanged(t *testing.T) {
	ctx := context.Background()
	set, store := newTestSet(t)
	user, _ := set.Users.Insert(ctx, domain.User{Username: "u"})
	task, _ := set.Tasks.Insert(ctx, domain.Task{Title: "t"})
	issue, _ := set.Issues.Insert(ctx, domain.Issue{Title: "i"})
	note, _ := set.PatchNotes.Insert(ctx, domain.PatchNote{Title: "n"})
	project, err := set.Projects.Create(ctx, domain.Project{Title: "p", UserUUID: user.UserUUID})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	same := "t"
	cases := []struct {
		name   string
		key    string
		update func() (UpdateOutcome, error)
	}{
		{"user", "users.json", func() (UpdateOutcome, error) {
			o, _, err := set.Users.Update(ctx, user.UserUUID, domain.UserPatch{})
			return o, err
		}},
		{"task", "tasks.json", func() (UpdateOutcome, error) {
			o, _, err := set.Tasks.Update(ctx, task.TaskUUID, domain.TaskPatch{Title: &same})
			return o, err
		}},
		{"issue", "issues.json", func() (UpdateOutcome, error) {
			o, _, err := set.Issues.Update(ctx, issue.IssueUUID, domain.IssuePatch{})
			return o, err
		}},
		{"patchnote", "patchnotes.json", func() (UpdateOutcome, error) {
			o, _, err := set.PatchNotes.Update(ctx, note.PatchNoteUUID, domain.PatchNotePatch{})
			return o, err
		}},
		{"project", "projects.json", func() (UpdateOutcome, error) {
			o, _, err := set.Projects.Update(ctx, project.ProjectUUID, domain.ProjectPatch{})
			return o, err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := raw(t, store, tc.key)
			info, _, _ := store.Get(ctx, tc.key)
			outcome, err := tc.update()
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if outcome != NoChanges {
				t.Fatalf("expected NoChanges, got %s", outcome)
			}
			if string(raw(t, store, tc.key)) != string(before) {
				t.Fatalf("document bytes changed")
			}
			after, _, _ := store.Get(ctx, tc.key)
			if !after.LastModified.Equal(info.LastModified) {
				t.Fatalf("no-change update must not write")
			}
		})
	}
}

func TestUpdateAppliesChanges(t *testing.T) {
	ctx := context.Background()
	set, _ := newTestSet(t)
	task, _ := set.Tasks.Insert(ctx, domain.Task{Title: "old"})
	title := "new"
	status := domain.StatusCompleted
	outcome, got, err := set.Tasks.Update(ctx, task.TaskUUID, domain.TaskPatch{Title: &title, Status: &status})
	if err != nil || outcome != Updated {
		t.Fatalf("update: %v %v", outcome, err)
	}
	if got.Title != "new" || got.Status != domain.StatusCompleted || got.TaskUUID != task.TaskUUID {
		t.Fatalf("unexpected updated task %+v", got)
	}
	reread, _ := set.Tasks.ReadByIdentifier(ctx, task.TaskUUID)
	if reread != got {
		t.Fatalf("update not persisted: %+v", reread)
	}
	if _, _, err := set.Tasks.Update(ctx, "missing", domain.TaskPatch{Title: &title}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	finished := true
	user, _ := set.Users.Insert(ctx, domain.User{Username: "u"})
	p, _ := set.Projects.Create(ctx, domain.Project{Title: "p", UserUUID: user.UserUUID})
	outcome, stored, err := set.Projects.Update(ctx, p.ProjectUUID, domain.ProjectPatch{IsFinished: &finished})
	if err != nil || outcome != Updated || !stored.IsFinished {
		t.Fatalf("project update: %v %+v %v", outcome, stored, err)
	}
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	set, _ := newTestSet(t)
	note, _ := set.PatchNotes.Insert(ctx, domain.PatchNote{Title: "a", Version: "1"})
	note.Version = "2"
	if err := set.PatchNotes.Replace(ctx, note); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := set.PatchNotes.ReadByIdentifier(ctx, note.PatchNoteUUID)
	if got.Version != "2" {
		t.Fatalf("replace not persisted")
	}
	if err := set.PatchNotes.Replace(ctx, domain.PatchNote{PatchNoteUUID: "ghost"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	set, _ := newTestSet(t)
	checks := map[string]func() error{
		"user":      func() error { return set.Users.DeleteByIdentifier(ctx, "x") },
		"task":      func() error { return set.Tasks.DeleteByIdentifier(ctx, "x") },
		"issue":     func() error { return set.Issues.DeleteByIdentifier(ctx, "x") },
		"patchnote": func() error { return set.PatchNotes.DeleteByIdentifier(ctx, "x") },
		"project":   func() error { return set.Projects.DeleteByIdentifier(ctx, "x") },
		"ownedTask": func() error { return set.Projects.DeleteTask(ctx, "x") },
		"userCasc":  func() error { return set.Projects.DeleteUser(ctx, "x") },
	}
	for name, fn := range checks {
		var nf domain.NotFoundError
		if err := fn(); !errors.As(err, &nf) || nf.Value != "x" {
			t.Errorf("%s: expected NotFoundError for x, got %v", name, err)
		}
	}
}

func TestConfiguredResourceKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "resources:\n  projects: data/projectJSON.json\n  users: data/userJSON.json\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store := blob.NewMemory()
	set := NewSet(store, WithResources(cfg))
	user, err := set.Users.Insert(ctx, domain.User{Username: "u"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := set.Projects.Create(ctx, domain.Project{UserUUID: user.UserUUID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, key := range []string{"data/userJSON.json", "data/projectJSON.json"} {
		if raw(t, store, key) == nil {
			t.Fatalf("expected document at %s", key)
		}
	}
	if set.Tasks.Collection().Key() != "tasks.json" {
		t.Fatalf("unconfigured resource should use default key")
	}
}

type strictResources struct{}

func (strictResources) ResourceKey(resource string) string { return resource + ".json" }
func (strictResources) CreateMissing() bool              { return false }

func TestStrictResourcesRequireDocuments(t *testing.T) {
	ctx := context.Background()
	set, _ := newTestSet(t, WithResources(strictResources{}))
	if _, err := set.Users.ListAll(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
