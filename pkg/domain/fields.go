package domain

import "sort"

// FieldAccessor exposes the stored fields of a record type by name so the
// generic record store can match records without reflection. Every getter
// must return a comparable value.
type FieldAccessor[T any] interface {
	Lookup(record T, field string) (any, bool)
	Names() []string
}

// Fields is a FieldAccessor backed by a map of typed getters.
type Fields[T any] map[string]func(T) any

// Lookup returns the value of field on record.
func (f Fields[T]) Lookup(record T, field string) (any, bool) {
	get, ok := f[field]
	if !ok {
		return nil, false
	}
	return get(record), true
}

// Names lists the exposed field names in sorted order.
func (f Fields[T]) Names() []string {
	out := make([]string, 0, len(f))
	for name := range f {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// UserFields exposes the stored user fields.
var UserFields = Fields[User]{
	FieldUserUUID: func(u User) any { return u.UserUUID },
	"userName":    func(u User) any { return u.Username },
	"password":    func(u User) any { return u.Password },
	"userRole":    func(u User) any { return u.Role },
}

// ProjectFields exposes the scalar stored project fields. The identifier
// lists are not comparable and are matched through Project.References.
var ProjectFields = Fields[Project]{
	FieldProjectUUID: func(p Project) any { return p.ProjectUUID },
	"title":          func(p Project) any { return p.Title },
	"description":    func(p Project) any { return p.Description },
	"startDate":      func(p Project) any { return p.StartDate },
	"isFinished":     func(p Project) any { return p.IsFinished },
	"subject":        func(p Project) any { return p.Subject },
	FieldUserUUID:    func(p Project) any { return p.UserUUID },
}

// TaskFields exposes the stored task fields.
var TaskFields = Fields[Task]{
	FieldTaskUUID: func(t Task) any { return t.TaskUUID },
	"title":       func(t Task) any { return t.Title },
	"description": func(t Task) any { return t.Description },
	"deadline":    func(t Task) any { return t.Deadline },
	"status":      func(t Task) any { return t.Status },
}

// IssueFields exposes the stored issue fields.
var IssueFields = Fields[Issue]{
	FieldIssueUUID: func(i Issue) any { return i.IssueUUID },
	"title":        func(i Issue) any { return i.Title },
	"description":  func(i Issue) any { return i.Description },
	"severity":     func(i Issue) any { return i.Severity },
	"status":       func(i Issue) any { return i.Status },
}

// PatchNoteFields exposes the stored patch note fields.
var PatchNoteFields = Fields[PatchNote]{
	FieldPatchNoteUUID: func(n PatchNote) any { return n.PatchNoteUUID },
	"title":            func(n PatchNote) any { return n.Title },
	"description":      func(n PatchNote) any { return n.Description },
	"date":             func(n PatchNote) any { return n.Date },
	"version":          func(n PatchNote) any { return n.Version },
}
