package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

type authResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Token  string `json:"token"`
}

var (
	authEmail    string
	authPassword string
	authName     string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and store its token",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out authResult
		err := newClient().do(http.MethodPost, "/auth/register", nil, map[string]string{
			"name": authName, "email": authEmail, "password": authPassword,
		}, &out)
		if err != nil {
			return err
		}
		if err := saveToken(out.Token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %s (%s)\n", out.Email, out.UserID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out authResult
		err := newClient().do(http.MethodPost, "/auth/login", nil, map[string]string{
			"email": authEmail, "password": authPassword,
		}, &out)
		if err != nil {
			return err
		}
		if err := saveToken(out.Token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s (%s)\n", out.Email, out.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.Remove(tokenFile()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var me struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := newClient().do(http.MethodGet, "/auth/me", nil, nil, &me); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> %s [%s]\n", me.Name, me.Email, me.ID, me.Role)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "account email")
		c.Flags().StringVar(&authPassword, "password", "", "account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().StringVar(&authName, "name", "", "display name")
	_ = registerCmd.MarkFlagRequired("name")
}
