package domain

// Patches carry partial updates. A nil field is left untouched; a non-nil
// field overwrites the stored value only when it differs. Apply reports
// whether anything changed.

// UserPatch is a partial update of a user.
type UserPatch struct {
	Username *string
	Password *string
	Role     *string
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u *User) bool {
	changed := set(&u.Username, p.Username)
	changed = set(&u.Password, p.Password) || changed
	changed = set(&u.Role, p.Role) || changed
	return changed
}

// ProjectPatch is a partial update of a project's scalar fields. Child lists
// change through attach and detach only.
type ProjectPatch struct {
	Title       *string
	Description *string
	StartDate   *CivilDate
	IsFinished  *bool
	Subject     *string
}

// Apply merges the patch into p.
func (p ProjectPatch) Apply(pr *Project) bool {
	changed := set(&pr.Title, p.Title)
	changed = set(&pr.Description, p.Description) || changed
	changed = set(&pr.StartDate, p.StartDate) || changed
	changed = set(&pr.IsFinished, p.IsFinished) || changed
	changed = set(&pr.Subject, p.Subject) || changed
	return changed
}

// TaskPatch is a partial update of a task.
type TaskPatch struct {
	Title       *string
	Description *string
	Deadline    *CivilDate
	Status      *Status
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) bool {
	changed := set(&t.Title, p.Title)
	changed = set(&t.Description, p.Description) || changed
	changed = set(&t.Deadline, p.Deadline) || changed
	changed = set(&t.Status, p.Status) || changed
	return changed
}

// IssuePatch is a partial update of an issue.
type IssuePatch struct {
	Title       *string
	Description *string
	Severity    *Severity
	Status      *Status
}

// Apply merges the patch into i.
func (p IssuePatch) Apply(i *Issue) bool {
	changed := set(&i.Title, p.Title)
	changed = set(&i.Description, p.Description) || changed
	changed = set(&i.Severity, p.Severity) || changed
	changed = set(&i.Status, p.Status) || changed
	return changed
}

// PatchNotePatch is a partial update of a patch note.
type PatchNotePatch struct {
	Title       *string
	Description *string
	Date        *CivilDate
	Version     *string
}

// Apply merges the patch into n.
func (p PatchNotePatch) Apply(n *PatchNote) bool {
	changed := set(&n.Title, p.Title)
	changed = set(&n.Description, p.Description) || changed
	changed = set(&n.Date, p.Date) || changed
	changed = set(&n.Version, p.Version) || changed
	return changed
}

func set[V comparable](dst *V, src *V) bool {
	if src == nil || *dst == *src {
		return false
	}
	*dst = *src
	return true
}
