// Package domain defines the persistent project-tracking entities, their
// stored field accessors, and the error taxonomy shared by every storage layer.
package domain

import (
	"strings"
)

// EntityType identifies the type of record stored in a collection.
type EntityType string

// Supported entity type identifiers used in errors, metrics and resource names.
const (
	// EntityUser identifies a user account record.
	EntityUser EntityType = "user"
	// EntityProject identifies a project record.
	EntityProject EntityType = "project"
	// EntityTask identifies a task owned by a project.
	EntityTask EntityType = "task"
	// EntityIssue identifies an issue owned by a project.
	EntityIssue EntityType = "issue"
	// EntityPatchNote identifies a patch note owned by a project.
	EntityPatchNote EntityType = "patchnote"
)

// Resource names of the stored collections. The lock order used by the
// record store follows the order of this list.
const (
	ResourceUsers      = "users"
	ResourceProjects   = "projects"
	ResourceTasks      = "tasks"
	ResourceIssues     = "issues"
	ResourcePatchNotes = "patchnotes"
)

// ResourceOrder is the global acquisition order for resource locks.
var ResourceOrder = []string{ResourceUsers, ResourceProjects, ResourceTasks, ResourceIssues, ResourcePatchNotes}

// Identifier field names as they appear in the stored documents.
const (
	FieldUserUUID      = "userUUID"
	FieldProjectUUID   = "projectUUID"
	FieldTaskUUID      = "taskUUID"
	FieldIssueUUID     = "issueUUID"
	FieldPatchNoteUUID = "patchNoteUUID"
)

// DefaultRole is assigned to users stored without a role.
const DefaultRole = "guest"

// Status is the workflow state shared by tasks and issues.
type Status string

// Canonical workflow states.
const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Valid reports whether s is one of the canonical workflow states.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Severity classifies an issue. The set is fixed; enforcing it belongs to the
// input validation layer.
type Severity string

// Recognised issue severities.
const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityTrivial  Severity = "trivial"
)

// Severities lists every recognised severity in descending order.
var Severities = []Severity{SeverityCritical, SeverityMajor, SeverityMinor, SeverityTrivial}

// ValidSeverity reports whether s names a recognised severity, ignoring case.
func ValidSeverity(s string) bool {
	lower := strings.ToLower(s)
	for _, sev := range Severities {
		if string(sev) == lower {
			return true
		}
	}
	return false
}

// ChildKind names one of the three collections owned by a project.
type ChildKind string

// Child kinds owned by a project.
const (
	ChildTask      ChildKind = "task"
	ChildIssue     ChildKind = "issue"
	ChildPatchNote ChildKind = "patchnote"
)

// ChildKinds lists the owned collections in cascade order.
var ChildKinds = []ChildKind{ChildTask, ChildIssue, ChildPatchNote}

// Entity maps the child kind to its entity type.
func (k ChildKind) Entity() EntityType {
	switch k {
	case ChildTask:
		return EntityTask
	case ChildIssue:
		return EntityIssue
	case ChildPatchNote:
		return EntityPatchNote
	default:
		return EntityType(k)
	}
}

// Resource maps the child kind to the name of its collection.
func (k ChildKind) Resource() string {
	switch k {
	case ChildTask:
		return ResourceTasks
	case ChildIssue:
		return ResourceIssues
	case ChildPatchNote:
		return ResourcePatchNotes
	default:
		return string(k)
	}
}

// User is an account that owns projects.
type User struct {
	UserUUID string `json:"userUUID"`
	Username string `json:"userName"`
	Password string `json:"password"`
	Role     string `json:"userRole"`
}

// Task is a unit of work inside a project.
type Task struct {
	TaskUUID    string    `json:"taskUUID"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    CivilDate `json:"deadline"`
	Status      Status    `json:"status"`
}

// Issue is a defect or concern tracked inside a project.
type Issue struct {
	IssueUUID   string   `json:"issueUUID"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Status      Status   `json:"status"`
}

// PatchNote documents a released version of a project.
type PatchNote struct {
	PatchNoteUUID string    `json:"patchNoteUUID"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Date          CivilDate `json:"date"`
	Version       string    `json:"version"`
}

// Project owns tasks, issues and patch notes by reference. Only the
// identifier lists and the owner identifier are persisted; User, Tasks, Issues
// and PatchNotes are hydrated from their own collections on read.
type Project struct {
	ProjectUUID    string    `json:"projectUUID"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartDate      CivilDate `json:"startDate"`
	IsFinished     bool      `json:"isFinished"`
	Subject        string    `json:"subject"`
	UserUUID       string    `json:"userUUID"`
	TaskUUIDs      []string  `json:"taskUUIDs"`
	IssueUUIDs     []string  `json:"issueUUIDs"`
	PatchNoteUUIDs []string  `json:"patchNoteUUIDs"`

	User       *User       `json:"user,omitzero"`
	Tasks      []Task      `json:"tasks,omitzero"`
	Issues     []Issue     `json:"issues,omitzero"`
	PatchNotes []PatchNote `json:"patchNotes,omitzero"`
}

// ChildIDs returns a pointer to the identifier list for kind, or nil when the
// kind is unknown.
func (p *Project) ChildIDs(kind ChildKind) *[]string {
	switch kind {
	case ChildTask:
		return &p.TaskUUIDs
	case ChildIssue:
		return &p.IssueUUIDs
	case ChildPatchNote:
		return &p.PatchNoteUUIDs
	default:
		return nil
	}
}

// References reports whether the project lists childID under kind.
func (p Project) References(kind ChildKind, childID string) bool {
	ids := p.ChildIDs(kind)
	if ids == nil {
		return false
	}
	for _, id := range *ids {
		if id == childID {
			return true
		}
	}
	return false
}

// Stored returns the persisted shape of the project: hydrated fields are
// dropped and identifier lists are copied and never nil.
func (p Project) Stored() Project {
	cp := p
	cp.User = nil
	cp.Tasks = nil
	cp.Issues = nil
	cp.PatchNotes = nil
	cp.TaskUUIDs = cloneIDs(p.TaskUUIDs)
	cp.IssueUUIDs = cloneIDs(p.IssueUUIDs)
	cp.PatchNoteUUIDs = cloneIDs(p.PatchNoteUUIDs)
	return cp
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
