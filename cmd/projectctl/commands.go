package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projecttracker/internal/blob"
	"projecttracker/internal/repository"
	"projecttracker/internal/serialize"
	"projecttracker/pkg/domain"
)

func (a *app) reconcileCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove orphaned children and dangling project references",
		Long: `Find tasks, issues and patch notes no project references, and project
references to records that no longer exist. Both are what an interrupted
cascade delete leaves behind.

Examples:
  # Report without changing anything
  projectctl reconcile --dry-run

  # Repair
  projectctl reconcile`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := a.repos.Projects.Reconcile(a.ctx(cmd), dryRun)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(reconcileView(rep), "", "  ")
			if err != nil {
				return err
			}
			return a.writeJSON(b)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report problems without repairing them")
	return cmd
}

type danglingView struct {
	Project string `json:"project"`
	Kind    string `json:"kind"`
	Child   string `json:"child"`
}

type sharedView struct {
	Kind     string   `json:"kind"`
	Child    string   `json:"child"`
	Projects []string `json:"projects"`
}

type reconcileOutput struct {
	DryRun        bool                `json:"dry_run"`
	Orphans       map[string][]string `json:"orphans"`
	Dangling      []danglingView      `json:"dangling"`
	MissingOwners []string            `json:"missing_owners"`
	Shared        []sharedView        `json:"shared"`
}

func reconcileView(rep repository.ReconcileReport) reconcileOutput {
	out := reconcileOutput{
		DryRun:        rep.DryRun,
		Orphans:       map[string][]string{},
		Dangling:      []danglingView{},
		MissingOwners: rep.MissingOwners,
		Shared:        []sharedView{},
	}
	for kind, ids := range rep.Orphans {
		if len(ids) > 0 {
			out.Orphans[string(kind)] = ids
		}
	}
	for _, d := range rep.Dangling {
		out.Dangling = append(out.Dangling, danglingView{Project: d.ProjectID, Kind: string(d.Kind), Child: d.ChildID})
	}
	for _, sc := range rep.Shared {
		out.Shared = append(out.Shared, sharedView{Kind: string(sc.Kind), Child: sc.ChildID, Projects: sc.Projects})
	}
	if out.MissingOwners == nil {
		out.MissingOwners = []string{}
	}
	return out
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users or projects",
	}
	var user string
	projects := &cobra.Command{
		Use:   "projects",
		Short: "List hydrated projects, optionally only those owned by --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)
			var list []domain.Project
			var err error
			if user != "" {
				list, err = a.repos.Projects.ListByUserIdentifier(ctx, user)
			} else {
				list, err = a.repos.Projects.ListAll(ctx)
			}
			if err != nil {
				return err
			}
			b, err := serialize.ExternalJSON(list, serialize.ProjectFilter)
			if err != nil {
				return err
			}
			return a.writeJSON(b)
		},
	}
	projects.Flags().StringVar(&user, "user", "", "owner userUUID")
	users := &cobra.Command{
		Use:   "users",
		Short: "List users without their passwords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.repos.Users.ListAll(a.ctx(cmd))
			if err != nil {
				return err
			}
			b, err := serialize.ExternalJSON(list, serialize.UserFilter)
			if err != nil {
				return err
			}
			return a.writeJSON(b)
		},
	}
	cmd.AddCommand(projects, users)
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one record",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "project <projectUUID>",
		Short: "Show a hydrated project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.repos.Projects.ReadByIdentifier(a.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			b, err := serialize.ExternalJSON(p, serialize.ProjectFilter)
			if err != nil {
				return err
			}
			return a.writeJSON(b)
		},
	})
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <resource>",
		Short: "Print a whole resource in its external representation",
		Long: `Print every record of a resource as it is shown to clients: passwords,
raw identifier lists and owner references are removed.

Resources: ` + fmt.Sprint(domain.ResourceOrder),
		Args:      cobra.ExactArgs(1),
		ValidArgs: domain.ResourceOrder,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			var (
				v      any
				err    error
				filter serialize.Filter
			)
			switch args[0] {
			case domain.ResourceUsers:
				v, err = a.repos.Users.ListAll(ctx)
				filter = serialize.UserFilter
			case domain.ResourceProjects:
				v, err = a.repos.Projects.ListAll(ctx)
				filter = serialize.ProjectFilter
			case domain.ResourceTasks:
				v, err = a.repos.Tasks.ListAll(ctx)
			case domain.ResourceIssues:
				v, err = a.repos.Issues.ListAll(ctx)
			case domain.ResourcePatchNotes:
				v, err = a.repos.PatchNotes.ListAll(ctx)
			default:
				return fmt.Errorf("unknown resource %q", args[0])
			}
			if err != nil {
				return err
			}
			b, err := serialize.ExternalJSON(v, filter)
			if err != nil {
				return err
			}
			return a.writeJSON(b)
		},
	}
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	var name, password, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a user and print its userUUID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			u, err := a.repos.Users.Insert(a.ctx(cmd), domain.User{Username: name, Password: password, Role: role})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, u.UserUUID)
			return err
		},
	}
	add.Flags().StringVar(&name, "name", "", "username")
	add.Flags().StringVar(&password, "password", "", "password")
	add.Flags().StringVar(&role, "role", "", "role (default "+domain.DefaultRole+")")
	cmd.AddCommand(add)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete records, cascading to owned records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "project <projectUUID>",
		Short: "Delete a project with its tasks, issues and patch notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.repos.Projects.DeleteByIdentifier(a.ctx(cmd), args[0])
		},
	}, &cobra.Command{
		Use:   "user <userUUID>",
		Short: "Delete a user with every project they own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.repos.Projects.DeleteUser(a.ctx(cmd), args[0])
		},
	})
	return cmd
}

func (a *app) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and their tasks",
	}
	var owner, title, subject string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a project owned by --user and print its projectUUID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.repos.Projects.Create(a.ctx(cmd), domain.Project{UserUUID: owner, Title: title, Subject: subject})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, p.ProjectUUID)
			return err
		},
	}
	add.Flags().StringVar(&owner, "user", "", "owner userUUID")
	add.Flags().StringVar(&title, "title", "", "project title")
	add.Flags().StringVar(&subject, "subject", "", "project subject")
	_ = add.MarkFlagRequired("user")

	var taskTitle string
	addTask := &cobra.Command{
		Use:   "add-task <projectUUID>",
		Short: "Create a task inside a project and print its taskUUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.repos.Projects.CreateTask(a.ctx(cmd), args[0], domain.Task{Title: taskTitle})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, t.TaskUUID)
			return err
		},
	}
	addTask.Flags().StringVar(&taskTitle, "title", "", "task title")
	cmd.AddCommand(add, addTask)
	return cmd
}

type documentView struct {
	Resource string     `json:"resource"`
	Key      string     `json:"key"`
	Stored   bool       `json:"stored"`
	Info     *blob.Info `json:"info,omitempty"`
}

func (a *app) resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Show the storage driver and the document behind each resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := a.repos.Documents(a.ctx(cmd))
			if err != nil {
				return err
			}
			out := struct {
				Driver    blob.Driver    `json:"driver"`
				Documents []documentView `json:"documents"`
			}{Driver: a.repos.Driver(), Documents: make([]documentView, 0, len(docs))}
			for _, d := range docs {
				v := documentView{Resource: d.Resource, Key: d.Key, Stored: d.Stored}
				if d.Stored {
					info := d.Info
					v.Info = &info
				}
				out.Documents = append(out.Documents, v)
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			return a.writeJSON(b)
		},
	}
}

func (a *app) purgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the stored document of every resource",
		Long: `Delete every resource document from the configured store. The next
command starts from empty resources when storage.create_missing is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to purge without --yes")
			}
			removed, err := a.repos.Purge(a.ctx(cmd))
			if err != nil {
				return err
			}
			a.logger.Info("store purged", zap.Strings("resources", removed))
			b, err := json.Marshal(map[string][]string{"removed": removed})
			if err != nil {
				return err
			}
			return a.writeJSON(b)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}
