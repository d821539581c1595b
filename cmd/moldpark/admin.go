package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/utils"
	"github.com/spf13/cobra"
)

var (
	adminUsername string
	adminEmail    string
	tokenUsername string
	tokenHours    int
)

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create or reset an administrator account",
		Long: `Create the administrator account, or reset its password and privileges.

The password is read from MOLDPARK_ADMIN_PASSWORD. Administrators receive the
system alert notifications and the alert e-mails.`,
		Args: cobra.NoArgs,
		RunE: runCreateAdmin,
	}

	cmd.Flags().StringVar(&adminUsername, "username", "", "Administrator username (required)")
	cmd.Flags().StringVar(&adminEmail, "email", "", "Address for alert e-mails")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	password := os.Getenv("MOLDPARK_ADMIN_PASSWORD")
	if len(password) < 8 {
		return fmt.Errorf("MOLDPARK_ADMIN_PASSWORD must be set to at least 8 characters")
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	u, created, err := rt.Store.SaveSuperuser(ctx, adminUsername, adminEmail, password)
	if err != nil {
		return fmt.Errorf("save %s: %w", adminUsername, err)
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Fprintln(cmd.OutOrStdout(), style().Success(fmt.Sprintf("Administrator %s %s (id %d)", u.Username, verb, u.ID)))
	return nil
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}

	cmd.Flags().StringVar(&tokenUsername, "username", "", "User to issue the token for (required)")
	cmd.Flags().IntVar(&tokenHours, "hours", 0, "Token lifespan in hours (default TOKEN_HOUR_LIFESPAN)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	u, err := rt.Store.GetUserByUsername(ctx, tokenUsername)
	if err != nil {
		return fmt.Errorf("user %s: %w", tokenUsername, err)
	}
	if !u.IsActive {
		return fmt.Errorf("user %s is inactive", tokenUsername)
	}
	role, err := rt.Store.RoleOf(ctx, *u)
	if err != nil {
		return err
	}
	if role == models.UserRoleNone {
		return fmt.Errorf("user %s owns no center or producer and is not an administrator", tokenUsername)
	}
	hours := tokenHours
	if hours <= 0 {
		hours = rt.Settings.TokenHours
	}
	token, err := utils.JwtGenerate([]byte(rt.Settings.APISecret), u.ID, string(role), time.Duration(hours)*time.Hour)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
