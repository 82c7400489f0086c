package repository

import (
	"go.uber.org/zap"

	"projecttracker/internal/blob"
	"projecttracker/internal/logging"
	"projecttracker/internal/metrics"
	"projecttracker/internal/recordstore"
	"projecttracker/pkg/domain"
)

// Resources resolves where each named resource is stored. *config.Config
// implements it.
type Resources interface {
	ResourceKey(resource string) string
	CreateMissing() bool
}

// Option configures a Set.
type Option func(*options)

type options struct {
	resources Resources
	logger    *zap.Logger
	metrics   metrics.Recorder
	locker    *recordstore.Locker
	locking   bool
}

// WithResources resolves storage keys and the missing-resource policy through r.
func WithResources(r Resources) Option { return func(o *options) { o.resources = r } }

// WithLogger sets the logger shared by every repository.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = logging.OrNop(l) } }

// WithMetrics sets the recorder shared by every collection.
func WithMetrics(r metrics.Recorder) Option { return func(o *options) { o.metrics = metrics.OrNop(r) } }

// WithLocker makes the Set take its locks from l, so several Sets over one
// store exclude each other.
func WithLocker(l *recordstore.Locker) Option { return func(o *options) { o.locker = l } }

// WithoutLocking disables every resource lock, including multi-resource
// scopes. Concurrent writers can then lose updates.
func WithoutLocking() Option { return func(o *options) { o.locking = false } }

// Set holds one repository per entity kind, all sharing a store and a Locker.
type Set struct {
	Users      *UserRepository
	Projects   *ProjectRepository
	Tasks      *TaskRepository
	Issues     *IssueRepository
	PatchNotes *PatchNoteRepository

	store   blob.Store
	keys    map[string]string
	locker  *recordstore.Locker
	locking bool
}

// NewSet binds every entity collection to store. Unless WithLocker is given
// the Set owns its locks, so Sets built separately over the same store do not
// exclude each other.
func NewSet(store blob.Store, opts ...Option) *Set {
	o := options{logger: zap.NewNop(), metrics: metrics.Nop{}, locking: true}
	for _, opt := range opts {
		opt(&o)
	}
	locker := o.locker
	if locker == nil {
		locker = recordstore.NewLocker()
	}
	collOpts := func(resource string) []recordstore.Option {
		out := []recordstore.Option{
			recordstore.WithLocker(locker),
			recordstore.WithLogger(o.logger),
			recordstore.WithMetrics(o.metrics),
		}
		if o.resources != nil {
			out = append(out,
				recordstore.WithKey(o.resources.ResourceKey(resource)),
				recordstore.WithCreateMissing(o.resources.CreateMissing()),
			)
		}
		if !o.locking {
			out = append(out, recordstore.WithoutLocking())
		}
		return out
	}

	users := newUserRepository(recordstore.New[domain.User](store, domain.ResourceUsers, domain.EntityUser, domain.UserFields, collOpts(domain.ResourceUsers)...))
	tasks := newRepository(recordstore.New[domain.Task](store, domain.ResourceTasks, domain.EntityTask, domain.TaskFields, collOpts(domain.ResourceTasks)...),
		domain.FieldTaskUUID, func(t *domain.Task) *string { return &t.TaskUUID })
	issues := newRepository(recordstore.New[domain.Issue](store, domain.ResourceIssues, domain.EntityIssue, domain.IssueFields, collOpts(domain.ResourceIssues)...),
		domain.FieldIssueUUID, func(i *domain.Issue) *string { return &i.IssueUUID })
	notes := newRepository(recordstore.New[domain.PatchNote](store, domain.ResourcePatchNotes, domain.EntityPatchNote, domain.PatchNoteFields, collOpts(domain.ResourcePatchNotes)...),
		domain.FieldPatchNoteUUID, func(n *domain.PatchNote) *string { return &n.PatchNoteUUID })
	tasks.prepare = func(t *domain.Task) {
		if t.Status == "" {
			t.Status = domain.StatusTodo
		}
	}
	issues.prepare = func(i *domain.Issue) {
		if i.Status == "" {
			i.Status = domain.StatusTodo
		}
	}
	projects := newRepository(recordstore.New[domain.Project](store, domain.ResourceProjects, domain.EntityProject, domain.ProjectFields, collOpts(domain.ResourceProjects)...),
		domain.FieldProjectUUID, func(p *domain.Project) *string { return &p.ProjectUUID })
	projects.prepare = func(p *domain.Project) { *p = p.Stored() }

	return &Set{
		Users:      users,
		Tasks:      tasks,
		Issues:     issues,
		PatchNotes: notes,
		Projects: &ProjectRepository{
			projects: projects,
			users:    users,
			tasks:    tasks,
			issues:   issues,
			notes:    notes,
			locker:   locker,
			locking:  o.locking,
			logger:   o.logger.Named("projects"),
		},
		store: store,
		keys: map[string]string{
			domain.ResourceUsers:      users.coll.Key(),
			domain.ResourceProjects:   projects.coll.Key(),
			domain.ResourceTasks:      tasks.coll.Key(),
			domain.ResourceIssues:     issues.coll.Key(),
			domain.ResourcePatchNotes: notes.coll.Key(),
		},
		locker:  locker,
		locking: o.locking,
	}
}

// Locker returns the locker shared by every collection of the set.
func (s *Set) Locker() *recordstore.Locker { return s.locker }
