package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	ProjectID   string  `json:"projectId"`
	AssignedTo  *string `json:"assignedTo"`
	CreatedBy   string  `json:"createdBy"`
	DueDate     *string `json:"dueDate"`
	CompletedAt *string `json:"completedAt"`
	Comments    []struct {
		UserID    string `json:"userId"`
		Text      string `json:"text"`
		CreatedAt string `json:"createdAt"`
	} `json:"comments"`
}

var (
	taskTitle       string
	taskDescription string
	taskPriority    string
	taskAssignee    string
	taskDue         string
	taskStatus      string
	taskSortBy      string
	taskOrder       string
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task"},
	Short:   "Manage tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := pageQuery(url.Values{
			"status":     {taskStatus},
			"priority":   {taskPriority},
			"assignedTo": {taskAssignee},
			"sortBy":     {taskSortBy},
			"order":      {taskOrder},
		})
		var out struct {
			Data       []task     `json:"data"`
			Pagination pagination `json:"pagination"`
		}
		if err := newClient().do(http.MethodGet, "/projects/"+url.PathEscape(args[0])+"/tasks", q, nil, &out); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tASSIGNEE\tDUE")
		for _, t := range out.Data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.Priority, orDash(t.AssignedTo), orDash(t.DueDate))
		}
		w.Flush()
		fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d total\n", out.Pagination.Page, out.Pagination.Pages, out.Pagination.Total)
		return nil
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <project-id> <title>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"title":       strings.Join(args[1:], " "),
			"description": taskDescription,
			"priority":    taskPriority,
		}
		if taskAssignee != "" {
			body["assignedTo"] = taskAssignee
		}
		if taskDue != "" {
			body["dueDate"] = taskDue
		}

		var out task
		if err := newClient().do(http.MethodPost, "/projects/"+url.PathEscape(args[0])+"/tasks", nil, body, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created task %s (%s)\n", out.Title, out.ID)
		return nil
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var t task
		if err := newClient().do(http.MethodGet, taskPath(args[0], ""), nil, nil, &t); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", t.ID, t.Title)
		fmt.Fprintf(out, "status: %s  priority: %s  assignee: %s  due: %s\n", t.Status, t.Priority, orDash(t.AssignedTo), orDash(t.DueDate))
		if t.Description != "" {
			fmt.Fprintf(out, "\n%s\n", t.Description)
		}
		for _, c := range t.Comments {
			fmt.Fprintf(out, "\n[%s] %s: %s", c.CreatedAt, c.UserID, c.Text)
		}
		if len(t.Comments) > 0 {
			fmt.Fprintln(out)
		}
		return nil
	},
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Patch a task; only the flags given are sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{}
		for flag, field := range map[string]string{
			"title":       "title",
			"description": "description",
			"priority":    "priority",
			"status":      "status",
			"assign":      "assignedTo",
			"due":         "dueDate",
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				body[field] = v
			}
		}
		if len(body) == 0 {
			return fmt.Errorf("nothing to update")
		}

		var out task
		if err := newClient().do(http.MethodPatch, taskPath(args[0], ""), nil, body, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated task %s [%s]\n", out.ID, out.Status)
		return nil
	},
}

var tasksStatusCmd = &cobra.Command{
	Use:   "status <task-id> <TODO|IN_PROGRESS|DONE>",
	Short: "Move a task through the workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out task
		err := newClient().do(http.MethodPatch, taskPath(args[0], ""), nil, map[string]string{"status": strings.ToUpper(args[1])}, &out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is now %s\n", out.ID, out.Status)
		return nil
	},
}

var tasksAssignCmd = &cobra.Command{
	Use:   "assign <task-id> <user-id>",
	Short: "Assign a task to a project member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out task
		if err := newClient().do(http.MethodPost, taskPath(args[0], "assign"), nil, map[string]string{"assignedTo": args[1]}, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Assigned %s to %s\n", out.ID, args[1])
		return nil
	},
}

var tasksCommentCmd = &cobra.Command{
	Use:   "comment <task-id> <text>",
	Short: "Comment on a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		if err := newClient().do(http.MethodPost, taskPath(args[0], "comments"), nil, map[string]string{"text": text}, nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Comment added")
		return nil
	},
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().do(http.MethodDelete, taskPath(args[0], ""), nil, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted task %s\n", args[0])
		return nil
	},
}

func taskPath(taskID, sub string) string {
	p := "/tasks/" + url.PathEscape(taskID)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func init() {
	tasksCmd.PersistentFlags().IntVar(&listPage, "page", 0, "page number")
	tasksCmd.PersistentFlags().IntVar(&listLimit, "limit", 0, "page size")

	tasksListCmd.Flags().StringVar(&taskStatus, "status", "", "filter by status")
	tasksListCmd.Flags().StringVar(&taskPriority, "priority", "", "filter by priority")
	tasksListCmd.Flags().StringVar(&taskAssignee, "assignee", "", "filter by assignee id")
	tasksListCmd.Flags().StringVar(&taskSortBy, "sort", "", "createdAt, dueDate or priority")
	tasksListCmd.Flags().StringVar(&taskOrder, "order", "", "asc or desc")

	tasksCreateCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	tasksCreateCmd.Flags().StringVar(&taskPriority, "priority", "", "LOW, MEDIUM or HIGH")
	tasksCreateCmd.Flags().StringVar(&taskAssignee, "assign", "", "assignee user id")
	tasksCreateCmd.Flags().StringVar(&taskDue, "due", "", "due date (YYYY-MM-DD or RFC 3339)")

	tasksUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "new title")
	tasksUpdateCmd.Flags().StringVar(&taskDescription, "description", "", "new description")
	tasksUpdateCmd.Flags().StringVar(&taskPriority, "priority", "", "new priority")
	tasksUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "new status")
	tasksUpdateCmd.Flags().StringVar(&taskAssignee, "assign", "", "new assignee; empty unassigns")
	tasksUpdateCmd.Flags().StringVar(&taskDue, "due", "", "new due date; empty clears it")

	tasksCmd.AddCommand(tasksListCmd, tasksCreateCmd, tasksShowCmd, tasksUpdateCmd, tasksStatusCmd,
		tasksAssignCmd, tasksCommentCmd, tasksDeleteCmd)
}
