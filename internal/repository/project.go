package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"projecttracker/internal/recordstore"
	"projecttracker/pkg/domain"
)

// ProjectRepository stores projects and maintains their references to the
// owning user and to the tasks, issues and patch notes they own.
//
// Operations spanning several resources claim every lock they need up front,
// in the global resource order, and pass the scope to the nested collections.
type ProjectRepository struct {
	projects *Repository[domain.Project]
	users    *UserRepository
	tasks    *TaskRepository
	issues   *IssueRepository
	notes    *PatchNoteRepository
	locker   *recordstore.Locker
	locking  bool
	logger   *zap.Logger
}

var hydrationResources = []string{
	domain.ResourceUsers,
	domain.ResourceProjects,
	domain.ResourceTasks,
	domain.ResourceIssues,
	domain.ResourcePatchNotes,
}

var cascadeResources = []string{
	domain.ResourceProjects,
	domain.ResourceTasks,
	domain.ResourceIssues,
	domain.ResourcePatchNotes,
}

func (r *ProjectRepository) scope(ctx context.Context, claims recordstore.Claims) (context.Context, func(), error) {
	if !r.locking {
		return ctx, func() {}, nil
	}
	return r.locker.Acquire(ctx, claims)
}

// snapshot holds every record a project can reference, keyed by identifier.
type snapshot struct {
	users  map[string]domain.User
	tasks  map[string]domain.Task
	issues map[string]domain.Issue
	notes  map[string]domain.PatchNote
}

func (s snapshot) has(kind domain.ChildKind, id string) bool {
	var ok bool
	switch kind {
	case domain.ChildTask:
		_, ok = s.tasks[id]
	case domain.ChildIssue:
		_, ok = s.issues[id]
	case domain.ChildPatchNote:
		_, ok = s.notes[id]
	}
	return ok
}

func (r *ProjectRepository) snapshot(ctx context.Context) (snapshot, error) {
	var s snapshot
	var err error
	if s.users, err = index(ctx, r.users.coll, func(u domain.User) string { return u.UserUUID }); err != nil {
		return s, err
	}
	if s.tasks, err = index(ctx, r.tasks.coll, func(t domain.Task) string { return t.TaskUUID }); err != nil {
		return s, err
	}
	if s.issues, err = index(ctx, r.issues.coll, func(i domain.Issue) string { return i.IssueUUID }); err != nil {
		return s, err
	}
	if s.notes, err = index(ctx, r.notes.coll, func(n domain.PatchNote) string { return n.PatchNoteUUID }); err != nil {
		return s, err
	}
	return s, nil
}

func index[T any](ctx context.Context, coll *recordstore.Collection[T], key func(T) string) (map[string]T, error) {
	records, err := coll.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(records))
	for _, rec := range records {
		out[key(rec)] = rec
	}
	return out, nil
}

// hydrate resolves the stored references of p against s. A reference that
// does not resolve is an integrity violation.
func (s snapshot) hydrate(p domain.Project) (domain.Project, error) {
	out := p.Stored()
	owner, ok := s.users[p.UserUUID]
	if !ok {
		return domain.Project{}, domain.IntegrityError{ProjectID: p.ProjectUUID, ChildID: p.UserUUID, Owner: true}
	}
	out.User = &owner
	out.Tasks = make([]domain.Task, 0, len(p.TaskUUIDs))
	for _, id := range p.TaskUUIDs {
		t, ok := s.tasks[id]
		if !ok {
			return domain.Project{}, domain.IntegrityError{ProjectID: p.ProjectUUID, Kind: domain.ChildTask, ChildID: id}
		}
		out.Tasks = append(out.Tasks, t)
	}
	out.Issues = make([]domain.Issue, 0, len(p.IssueUUIDs))
	for _, id := range p.IssueUUIDs {
		i, ok := s.issues[id]
		if !ok {
			return domain.Project{}, domain.IntegrityError{ProjectID: p.ProjectUUID, Kind: domain.ChildIssue, ChildID: id}
		}
		out.Issues = append(out.Issues, i)
	}
	out.PatchNotes = make([]domain.PatchNote, 0, len(p.PatchNoteUUIDs))
	for _, id := range p.PatchNoteUUIDs {
		n, ok := s.notes[id]
		if !ok {
			return domain.Project{}, domain.IntegrityError{ProjectID: p.ProjectUUID, Kind: domain.ChildPatchNote, ChildID: id}
		}
		out.PatchNotes = append(out.PatchNotes, n)
	}
	return out, nil
}

// ReadStored returns the project as persisted, without resolving references.
func (r *ProjectRepository) ReadStored(ctx context.Context, id string) (domain.Project, error) {
	return r.projects.ReadByIdentifier(ctx, id)
}

// ReadByIdentifier returns the project with its owner and children resolved
// from their current records.
func (r *ProjectRepository) ReadByIdentifier(ctx context.Context, id string) (domain.Project, error) {
	ctx, release, err := r.scope(ctx, recordstore.Claims{Read: hydrationResources})
	if err != nil {
		return domain.Project{}, err
	}
	defer release()
	p, err := r.projects.ReadByIdentifier(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	s, err := r.snapshot(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	return s.hydrate(p)
}

// ListAll returns every project, hydrated.
func (r *ProjectRepository) ListAll(ctx context.Context) ([]domain.Project, error) {
	return r.listHydrated(ctx, func(domain.Project) bool { return true })
}

// ListByUserIdentifier returns the hydrated projects owned by userID.
func (r *ProjectRepository) ListByUserIdentifier(ctx context.Context, userID string) ([]domain.Project, error) {
	return r.listHydrated(ctx, func(p domain.Project) bool { return p.UserUUID == userID })
}

func (r *ProjectRepository) listHydrated(ctx context.Context, match func(domain.Project) bool) ([]domain.Project, error) {
	ctx, release, err := r.scope(ctx, recordstore.Claims{Read: hydrationResources})
	if err != nil {
		return nil, err
	}
	defer release()
	stored, err := r.projects.coll.FindAll(ctx, match)
	if err != nil {
		return nil, err
	}
	s, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(stored))
	for _, p := range stored {
		h, err := s.hydrate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Create stores p after checking that its owner and every listed child
// exist, and returns it hydrated. A missing owner or child is reported as
// domain.ErrNotFound; a child another project already lists is reported as a
// domain.OwnershipError.
func (r *ProjectRepository) Create(ctx context.Context, p domain.Project) (domain.Project, error) {
	ctx, release, err := r.scope(ctx, recordstore.Claims{
		Write: []string{domain.ResourceProjects},
		Read:  hydrationResources,
	})
	if err != nil {
		return domain.Project{}, err
	}
	defer release()
	s, err := r.snapshot(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if _, ok := s.users[p.UserUUID]; !ok {
		return domain.Project{}, domain.NotFoundError{Entity: domain.EntityUser, Value: p.UserUUID}
	}
	existing, err := r.projects.coll.LoadAll(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	for _, kind := range domain.ChildKinds {
		for _, id := range *p.ChildIDs(kind) {
			if !s.has(kind, id) {
				return domain.Project{}, domain.NotFoundError{Entity: kind.Entity(), Value: id}
			}
			if other, ok := ownerOf(existing, kind, id, p.ProjectUUID); ok {
				return domain.Project{}, domain.OwnershipError{Kind: kind, ChildID: id, OwnerID: other}
			}
		}
	}
	stored, err := r.projects.Insert(ctx, p)
	if err != nil {
		return domain.Project{}, err
	}
	r.logger.Debug("project created", zap.String("project", stored.ProjectUUID), zap.String("owner", stored.UserUUID))
	return s.hydrate(stored)
}

// Update applies patch to the project's scalar fields and returns the stored
// project. Child lists change only through AttachChild and DetachChild.
func (r *ProjectRepository) Update(ctx context.Context, id string, patch domain.ProjectPatch) (UpdateOutcome, domain.Project, error) {
	return r.projects.Update(ctx, id, patch)
}

// DeleteByIdentifier removes the project and every task, issue and patch note
// it references. Children go first so an interrupted delete leaves orphaned
// children rather than a project pointing at deleted records. A child that is
// already gone is skipped, which makes a failed cascade safe to re-run. A
// child some other project also lists is kept for that project. Any
// other failure stops the cascade before the project record is removed and is
// returned as a *domain.CascadeError.
func (r *ProjectRepository) DeleteByIdentifier(ctx context.Context, id string) error {
	ctx, release, err := r.scope(ctx, recordstore.Claims{Write: cascadeResources})
	if err != nil {
		return err
	}
	defer release()
	p, err := r.projects.ReadByIdentifier(ctx, id)
	if err != nil {
		return err
	}
	all, err := r.projects.coll.LoadAll(ctx)
	if err != nil {
		return err
	}
	var deleted []string
	for _, kind := range domain.ChildKinds {
		for _, childID := range *p.ChildIDs(kind) {
			if other, ok := ownerOf(all, kind, childID, id); ok {
				r.logger.Warn("cascade kept shared child",
					zap.String("project", id), zap.String("kind", string(kind)),
					zap.String("child", childID), zap.String("also_owned_by", other))
				continue
			}
			err := r.deleteChild(ctx, kind, childID)
			if errors.Is(err, domain.ErrNotFound) {
				r.logger.Info("cascade skipped missing child",
					zap.String("project", id), zap.String("kind", string(kind)), zap.String("child", childID))
				continue
			}
			if err != nil {
				return &domain.CascadeError{ProjectID: id, Deleted: deleted, Err: err}
			}
			deleted = append(deleted, childID)
		}
	}
	if err := r.projects.DeleteByIdentifier(ctx, id); err != nil {
		return &domain.CascadeError{ProjectID: id, Deleted: deleted, Err: err}
	}
	r.logger.Debug("project deleted", zap.String("project", id), zap.Int("children", len(deleted)))
	return nil
}

func (r *ProjectRepository) deleteChild(ctx context.Context, kind domain.ChildKind, id string) error {
	switch kind {
	case domain.ChildTask:
		return r.tasks.DeleteByIdentifier(ctx, id)
	case domain.ChildIssue:
		return r.issues.DeleteByIdentifier(ctx, id)
	case domain.ChildPatchNote:
		return r.notes.DeleteByIdentifier(ctx, id)
	default:
		return unknownKind(kind)
	}
}

func (r *ProjectRepository) childExists(ctx context.Context, kind domain.ChildKind, id string) error {
	var err error
	switch kind {
	case domain.ChildTask:
		_, err = r.tasks.ReadByIdentifier(ctx, id)
	case domain.ChildIssue:
		_, err = r.issues.ReadByIdentifier(ctx, id)
	case domain.ChildPatchNote:
		_, err = r.notes.ReadByIdentifier(ctx, id)
	default:
		err = unknownKind(kind)
	}
	return err
}

func unknownKind(kind domain.ChildKind) error {
	return fmt.Errorf("unknown child kind %q", kind)
}

// FindProjectOwning returns the stored project whose kind list contains
// childID. Every project and every list entry is scanned.
func (r *ProjectRepository) FindProjectOwning(ctx context.Context, childID string, kind domain.ChildKind) (domain.Project, error) {
	if (&domain.Project{}).ChildIDs(kind) == nil {
		return domain.Project{}, unknownKind(kind)
	}
	owners, err := r.projects.coll.FindAll(ctx, func(p domain.Project) bool { return p.References(kind, childID) })
	if err != nil {
		return domain.Project{}, err
	}
	if len(owners) == 0 {
		return domain.Project{}, domain.NotFoundError{Entity: domain.EntityProject, Field: string(kind), Value: childID}
	}
	return owners[0], nil
}

// AttachChild appends childID to the project's kind list after checking that
// the child exists. Attaching a child already listed is a no-op. A child that
// another project lists is rejected with a domain.OwnershipError.
func (r *ProjectRepository) AttachChild(ctx context.Context, projectID string, kind domain.ChildKind, childID string) error {
	if (&domain.Project{}).ChildIDs(kind) == nil {
		return unknownKind(kind)
	}
	ctx, release, err := r.scope(ctx, recordstore.Claims{
		Write: []string{domain.ResourceProjects},
		Read:  []string{kind.Resource()},
	})
	if err != nil {
		return err
	}
	defer release()
	if err := r.childExists(ctx, kind, childID); err != nil {
		return err
	}
	return r.attach(ctx, projectID, kind, childID)
}

func (r *ProjectRepository) attach(ctx context.Context, projectID string, kind domain.ChildKind, childID string) error {
	return r.projects.coll.Mutate(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		i := r.projects.indexOf(projects, projectID)
		if i < 0 {
			return nil, r.projects.notFound(projectID)
		}
		if projects[i].References(kind, childID) {
			return nil, recordstore.ErrSkipWrite
		}
		if other, ok := ownerOf(projects, kind, childID, projectID); ok {
			return nil, domain.OwnershipError{Kind: kind, ChildID: childID, OwnerID: other}
		}
		ids := projects[i].ChildIDs(kind)
		*ids = append(*ids, childID)
		return projects, nil
	})
}

// DetachChild removes childID from the project's kind list. A child the
// project does not list is reported as domain.ErrNotFound.
func (r *ProjectRepository) DetachChild(ctx context.Context, projectID string, kind domain.ChildKind, childID string) error {
	if (&domain.Project{}).ChildIDs(kind) == nil {
		return unknownKind(kind)
	}
	return r.projects.coll.Mutate(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		i := r.projects.indexOf(projects, projectID)
		if i < 0 {
			return nil, r.projects.notFound(projectID)
		}
		if !projects[i].References(kind, childID) {
			return nil, domain.NotFoundError{Entity: kind.Entity(), Value: childID}
		}
		*projects[i].ChildIDs(kind) = without(*projects[i].ChildIDs(kind), childID)
		return projects, nil
	})
}

// ownerOf returns the first project other than except whose kind list
// contains childID.
func ownerOf(projects []domain.Project, kind domain.ChildKind, childID, except string) (string, bool) {
	for _, p := range projects {
		if p.ProjectUUID != except && p.References(kind, childID) {
			return p.ProjectUUID, true
		}
	}
	return "", false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// DeleteUser removes the user and, first, every project the user owns
// together with the projects' children.
func (r *ProjectRepository) DeleteUser(ctx context.Context, userID string) error {
	ctx, release, err := r.scope(ctx, recordstore.Claims{Write: hydrationResources})
	if err != nil {
		return err
	}
	defer release()
	if _, err := r.users.ReadByIdentifier(ctx, userID); err != nil {
		return err
	}
	owned, err := r.projects.coll.FindAll(ctx, func(p domain.Project) bool { return p.UserUUID == userID })
	if err != nil {
		return err
	}
	for _, p := range owned {
		if err := r.DeleteByIdentifier(ctx, p.ProjectUUID); err != nil {
			return err
		}
	}
	return r.users.DeleteByIdentifier(ctx, userID)
}
