package main

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var memberRole string

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage a project's roster",
}

var membersListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List project members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Email    string `json:"email"`
			Role     string `json:"role"`
			JoinedAt string `json:"joinedAt"`
		}
		if err := newClient().do(http.MethodGet, membersPath(args[0], ""), nil, nil, &out); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tNAME\tEMAIL\tROLE\tJOINED")
		for _, m := range out {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Email, m.Role, m.JoinedAt)
		}
		return w.Flush()
	},
}

var membersAddCmd = &cobra.Command{
	Use:   "add <project-id> <user-id>",
	Short: "Add a user to a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := newClient().do(http.MethodPost, membersPath(args[0], ""), nil, map[string]string{
			"userId": args[1], "role": memberRole,
		}, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s as %s\n", args[1], memberRole)
		return nil
	},
}

var membersRoleCmd = &cobra.Command{
	Use:   "role <project-id> <user-id> <role>",
	Short: "Change a member's project role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := newClient().do(http.MethodPatch, membersPath(args[0], args[1]), nil, map[string]string{"role": args[2]}, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is now %s\n", args[1], args[2])
		return nil
	},
}

var membersRemoveCmd = &cobra.Command{
	Use:   "remove <project-id> <user-id>",
	Short: "Remove a member from a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().do(http.MethodDelete, membersPath(args[0], args[1]), nil, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", args[1])
		return nil
	},
}

func membersPath(projectID, userID string) string {
	p := "/projects/" + url.PathEscape(projectID) + "/members"
	if userID != "" {
		p += "/" + url.PathEscape(userID)
	}
	return p
}

func init() {
	membersAddCmd.Flags().StringVar(&memberRole, "role", "MEMBER", "project role (OWNER|MANAGER|MEMBER)")
	membersCmd.AddCommand(membersListCmd, membersAddCmd, membersRoleCmd, membersRemoveCmd)
}
