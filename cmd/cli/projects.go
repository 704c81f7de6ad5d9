package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId"`
	Status      string `json:"status"`
	Members     []struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	} `json:"members"`
	CreatedAt string `json:"createdAt"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

var (
	projectName        string
	projectDescription string
	projectStatus      string
	listPage           int
	listLimit          int
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects visible to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Data       []project  `json:"data"`
			Pagination pagination `json:"pagination"`
		}
		if err := newClient().do(http.MethodGet, "/projects", pageQuery(url.Values{"status": {projectStatus}}), nil, &out); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMEMBERS\tCREATED")
		for _, p := range out.Data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Status, len(p.Members), p.CreatedAt)
		}
		w.Flush()
		fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d, %d total\n", out.Pagination.Page, out.Pagination.Pages, out.Pagination.Total)
		return nil
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out project
		err := newClient().do(http.MethodPost, "/projects", nil, map[string]string{
			"name": args[0], "description": projectDescription,
		}, &out)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created project %s (%s)\n", out.Name, out.ID)
		return nil
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out project
		if err := newClient().do(http.MethodGet, "/projects/"+url.PathEscape(args[0]), nil, nil, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s [%s]\nowner: %s\n%s\n", out.ID, out.Name, out.Status, out.OwnerID, out.Description)
		return nil
	},
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a project's name, description or status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{}
		if cmd.Flags().Changed("name") {
			body["name"] = projectName
		}
		if cmd.Flags().Changed("description") {
			body["description"] = projectDescription
		}
		if cmd.Flags().Changed("status") {
			body["status"] = projectStatus
		}
		if len(body) == 0 {
			return fmt.Errorf("nothing to update: pass --name, --description or --status")
		}

		var out project
		if err := newClient().do(http.MethodPatch, "/projects/"+url.PathEscape(args[0]), nil, body, &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated project %s\n", out.ID)
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project and all of its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().do(http.MethodDelete, "/projects/"+url.PathEscape(args[0]), nil, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted project %s\n", args[0])
		return nil
	},
}

var projectsStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Show task counts for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Total      int            `json:"total"`
			ByStatus   map[string]int `json:"byStatus"`
			ByPriority map[string]int `json:"byPriority"`
			Overdue    int            `json:"overdue"`
		}
		if err := newClient().do(http.MethodGet, "/projects/"+url.PathEscape(args[0])+"/stats", nil, nil, &out); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "total\t%d\n", out.Total)
		for _, s := range []string{"TODO", "IN_PROGRESS", "DONE"} {
			fmt.Fprintf(w, "%s\t%d\n", s, out.ByStatus[s])
		}
		for _, p := range []string{"HIGH", "MEDIUM", "LOW"} {
			fmt.Fprintf(w, "%s\t%d\n", p, out.ByPriority[p])
		}
		fmt.Fprintf(w, "overdue\t%d\n", out.Overdue)
		return w.Flush()
	},
}

// pageQuery adds the shared --page/--limit flags and drops empty values
func pageQuery(q url.Values) url.Values {
	if listPage > 0 {
		q.Set("page", strconv.Itoa(listPage))
	}
	if listLimit > 0 {
		q.Set("limit", strconv.Itoa(listLimit))
	}
	for k, v := range q {
		if len(v) == 0 || v[0] == "" {
			q.Del(k)
		}
	}
	return q
}

func init() {
	projectsCmd.PersistentFlags().IntVar(&listPage, "page", 0, "page number")
	projectsCmd.PersistentFlags().IntVar(&listLimit, "limit", 0, "page size")
	projectsListCmd.Flags().StringVar(&projectStatus, "status", "", "filter by status (ACTIVE|ARCHIVED)")

	projectsCreateCmd.Flags().StringVar(&projectDescription, "description", "", "project description")

	projectsUpdateCmd.Flags().StringVar(&projectName, "name", "", "new name")
	projectsUpdateCmd.Flags().StringVar(&projectDescription, "description", "", "new description")
	projectsUpdateCmd.Flags().StringVar(&projectStatus, "status", "", "ACTIVE or ARCHIVED")

	projectsCmd.AddCommand(projectsListCmd, projectsCreateCmd, projectsShowCmd, projectsUpdateCmd, projectsDeleteCmd, projectsStatsCmd)
}
