package main

import (
	"fmt"
	"time"

	"dialer-platform/internal/auth"
	"dialer-platform/internal/rbac"

	"github.com/spf13/cobra"
)

// newTokenCmd issues an access/refresh pair for an existing identity.
// Identity is owned by the host platform; this is an operator tool for local runs and smoke tests.
func newTokenCmd(load configLoader) *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if !rbac.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			pair, err := m.IssuePair(time.Now(), userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "access_token=%s\nrefresh_token=%s\n", pair.AccessToken, pair.RefreshToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed in the token")
	cmd.Flags().StringVar(&role, "role", rbac.RoleWorker, "role: worker, admin or super_admin")
	return cmd
}
