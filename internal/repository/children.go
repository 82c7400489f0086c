package repository

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"projecttracker/internal/recordstore"
	"projecttracker/pkg/domain"
)

// CreateTask stores t and attaches it to the project in one scope.
func (r *ProjectRepository) CreateTask(ctx context.Context, projectID string, t domain.Task) (domain.Task, error) {
	return createChild(ctx, r, r.tasks, domain.ChildTask, projectID, t)
}

// CreateIssue stores i and attaches it to the project in one scope.
func (r *ProjectRepository) CreateIssue(ctx context.Context, projectID string, i domain.Issue) (domain.Issue, error) {
	return createChild(ctx, r, r.issues, domain.ChildIssue, projectID, i)
}

// CreatePatchNote stores n and attaches it to the project in one scope.
func (r *ProjectRepository) CreatePatchNote(ctx context.Context, projectID string, n domain.PatchNote) (domain.PatchNote, error) {
	return createChild(ctx, r, r.notes, domain.ChildPatchNote, projectID, n)
}

// DeleteTask detaches the task from its owning project, if any, then deletes it.
func (r *ProjectRepository) DeleteTask(ctx context.Context, id string) error {
	return deleteOwnedChild(ctx, r, r.tasks, domain.ChildTask, id)
}

// DeleteIssue detaches the issue from its owning project, if any, then deletes it.
func (r *ProjectRepository) DeleteIssue(ctx context.Context, id string) error {
	return deleteOwnedChild(ctx, r, r.issues, domain.ChildIssue, id)
}

// DeletePatchNote detaches the patch note from its owning project, if any,
// then deletes it.
func (r *ProjectRepository) DeletePatchNote(ctx context.Context, id string) error {
	return deleteOwnedChild(ctx, r, r.notes, domain.ChildPatchNote, id)
}

// createChild holds the projects and child locks so the project cannot be
// deleted between the existence check and the attach.
func createChild[T any](ctx context.Context, r *ProjectRepository, repo *Repository[T], kind domain.ChildKind, projectID string, child T) (T, error) {
	var zero T
	ctx, release, err := r.scope(ctx, recordstore.Claims{Write: []string{domain.ResourceProjects, kind.Resource()}})
	if err != nil {
		return zero, err
	}
	defer release()
	if _, err := r.projects.ReadByIdentifier(ctx, projectID); err != nil {
		return zero, err
	}
	stored, err := repo.Insert(ctx, child)
	if err != nil {
		return zero, err
	}
	if err := r.attach(ctx, projectID, kind, *repo.id(&stored)); err != nil {
		return zero, err
	}
	return stored, nil
}

// deleteOwnedChild detaches before deleting so a failure in between leaves
// an orphan for Reconcile instead of a dangling reference.
func deleteOwnedChild[T any](ctx context.Context, r *ProjectRepository, repo *Repository[T], kind domain.ChildKind, id string) error {
	ctx, release, err := r.scope(ctx, recordstore.Claims{Write: []string{domain.ResourceProjects, kind.Resource()}})
	if err != nil {
		return err
	}
	defer release()
	if _, err := repo.ReadByIdentifier(ctx, id); err != nil {
		return err
	}
	err = r.projects.coll.Mutate(ctx, func(projects []domain.Project) ([]domain.Project, error) {
		changed := false
		for i := range projects {
			if projects[i].References(kind, id) {
				*projects[i].ChildIDs(kind) = without(*projects[i].ChildIDs(kind), id)
				changed = true
			}
		}
		if !changed {
			return nil, recordstore.ErrSkipWrite
		}
		return projects, nil
	})
	if err != nil {
		return err
	}
	return repo.DeleteByIdentifier(ctx, id)
}

// ReconcileReport lists the inconsistencies a reconciliation pass found.
type ReconcileReport struct {
	DryRun bool
	// Orphans are children no project references, keyed by kind.
	Orphans map[domain.ChildKind][]string
	// Dangling are project references to children that do not exist.
	Dangling []domain.IntegrityError
	// MissingOwners are projects whose owner does not exist. They are
	// reported and never modified.
	MissingOwners []string
	// Shared are children listed by more than one project. They are
	// reported and never modified.
	Shared []SharedChild
}

// SharedChild is a child whose ownership is claimed by several projects.
type SharedChild struct {
	Kind     domain.ChildKind
	ChildID  string
	Projects []string
}

// Clean reports whether the pass found nothing to repair.
func (rep ReconcileReport) Clean() bool {
	n := len(rep.Dangling) + len(rep.MissingOwners) + len(rep.Shared)
	for _, ids := range rep.Orphans {
		n += len(ids)
	}
	return n == 0
}

// Reconcile finds the leftovers of interrupted cascades: children no project
// references and project references to deleted children. Unless dryRun is
// set, orphans are deleted and dangling references are dropped from their
// projects. Children listed by several projects are only reported.
func (r *ProjectRepository) Reconcile(ctx context.Context, dryRun bool) (ReconcileReport, error) {
	claims := recordstore.Claims{Write: cascadeResources, Read: []string{domain.ResourceUsers}}
	if dryRun {
		claims = recordstore.Claims{Read: hydrationResources}
	}
	ctx, release, err := r.scope(ctx, claims)
	if err != nil {
		return ReconcileReport{}, err
	}
	defer release()

	rep := ReconcileReport{DryRun: dryRun, Orphans: map[domain.ChildKind][]string{}}
	s, err := r.snapshot(ctx)
	if err != nil {
		return rep, err
	}
	projects, err := r.projects.ListAll(ctx)
	if err != nil {
		return rep, err
	}

	referenced := map[domain.ChildKind]map[string][]string{}
	for _, kind := range domain.ChildKinds {
		referenced[kind] = map[string][]string{}
	}
	projectsChanged := false
	for i := range projects {
		p := &projects[i]
		if _, ok := s.users[p.UserUUID]; !ok {
			rep.MissingOwners = append(rep.MissingOwners, p.ProjectUUID)
		}
		for _, kind := range domain.ChildKinds {
			ids := p.ChildIDs(kind)
			kept := make([]string, 0, len(*ids))
			for _, id := range *ids {
				if !s.has(kind, id) {
					rep.Dangling = append(rep.Dangling, domain.IntegrityError{ProjectID: p.ProjectUUID, Kind: kind, ChildID: id})
					continue
				}
				if owners := referenced[kind][id]; len(owners) == 0 || owners[len(owners)-1] != p.ProjectUUID {
					referenced[kind][id] = append(owners, p.ProjectUUID)
				}
				kept = append(kept, id)
			}
			if len(kept) != len(*ids) {
				*ids = kept
				projectsChanged = true
			}
		}
	}
	for id := range s.tasks {
		if len(referenced[domain.ChildTask][id]) == 0 {
			rep.Orphans[domain.ChildTask] = append(rep.Orphans[domain.ChildTask], id)
		}
	}
	for id := range s.issues {
		if len(referenced[domain.ChildIssue][id]) == 0 {
			rep.Orphans[domain.ChildIssue] = append(rep.Orphans[domain.ChildIssue], id)
		}
	}
	for id := range s.notes {
		if len(referenced[domain.ChildPatchNote][id]) == 0 {
			rep.Orphans[domain.ChildPatchNote] = append(rep.Orphans[domain.ChildPatchNote], id)
		}
	}
	for _, ids := range rep.Orphans {
		sort.Strings(ids)
	}
	for _, kind := range domain.ChildKinds {
		for id, owners := range referenced[kind] {
			if len(owners) > 1 {
				rep.Shared = append(rep.Shared, SharedChild{Kind: kind, ChildID: id, Projects: owners})
			}
		}
	}
	sort.Slice(rep.Shared, func(i, j int) bool {
		if rep.Shared[i].Kind != rep.Shared[j].Kind {
			return rep.Shared[i].Kind < rep.Shared[j].Kind
		}
		return rep.Shared[i].ChildID < rep.Shared[j].ChildID
	})

	r.logger.Info("reconcile",
		zap.Bool("dry_run", dryRun),
		zap.Int("dangling", len(rep.Dangling)),
		zap.Int("orphan_tasks", len(rep.Orphans[domain.ChildTask])),
		zap.Int("orphan_issues", len(rep.Orphans[domain.ChildIssue])),
		zap.Int("orphan_patchnotes", len(rep.Orphans[domain.ChildPatchNote])),
		zap.Int("shared", len(rep.Shared)),
		zap.Strings("missing_owners", rep.MissingOwners))
	if dryRun {
		return rep, nil
	}

	if projectsChanged {
		if err := r.projects.coll.SaveAll(ctx, projects); err != nil {
			return rep, err
		}
	}
	if err := dropAll(ctx, r.tasks, rep.Orphans[domain.ChildTask]); err != nil {
		return rep, err
	}
	if err := dropAll(ctx, r.issues, rep.Orphans[domain.ChildIssue]); err != nil {
		return rep, err
	}
	if err := dropAll(ctx, r.notes, rep.Orphans[domain.ChildPatchNote]); err != nil {
		return rep, err
	}
	return rep, nil
}

// dropAll removes every record whose identifier is in ids with one write.
func dropAll[T any](ctx context.Context, repo *Repository[T], ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return repo.coll.Mutate(ctx, func(records []T) ([]T, error) {
		kept := records[:0]
		for i := range records {
			if !drop[*repo.id(&records[i])] {
				kept = append(kept, records[i])
			}
		}
		return kept, nil
	})
}
