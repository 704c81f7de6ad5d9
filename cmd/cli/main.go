package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "teamtasks",
	Short: "Command-line client for the teamtasks API",
	Long: `A CLI for managing projects, members and tasks on a teamtasks server.

Log in once with "teamtasks login"; the token is stored in ~/.teamtasks/token.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPIURL(), "API base URL (env TEAMTASKS_API)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(projectsCmd, membersCmd, tasksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAPIURL() string {
	if url := os.Getenv("TEAMTASKS_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}
