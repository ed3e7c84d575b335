package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/issuedesk/issue-service/internal/app"
	"github.com/issuedesk/issue-service/internal/domain"
	"github.com/issuedesk/issue-service/internal/repository"
	"github.com/issuedesk/issue-service/internal/service"
)

// NewUserCommand creates the user command group.
func NewUserCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts and roles",
	}
	cmd.AddCommand(newUserCreateCommand(root))
	cmd.AddCommand(newUserListCommand(root))
	cmd.AddCommand(newUserSetRoleCommand(root))
	cmd.AddCommand(newUserActiveCommand(root, "activate", "Re-enable a deactivated account", true))
	cmd.AddCommand(newUserActiveCommand(root, "deactivate", "Disable an account without deleting it", false))
	return cmd
}

func newUserCreateCommand(root *RootOptions) *cobra.Command {
	var (
		input service.AccountInput
		role  string
	)
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account with a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Username = args[0]
			return root.withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				created, err := c.Users.CreateUser(ctx, service.SystemActor(), input, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s created %s (id %d, role %s)\n",
					success("✓"), created.User.Username, created.User.ID, c.Catalog.RoleLabel(created.Role))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&input.Password, "password", "p", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "profile role")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&input.Email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserListCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				users, err := c.Users.ListActiveUsers(ctx, service.SystemActor())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, muted("no active users"))
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, heading("ID\tUSERNAME\tNAME\tROLE"))
				for _, u := range users {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.User.ID, u.User.Username, u.User.DisplayName(), c.Catalog.RoleLabel(u.Role))
				}
				return tw.Flush()
			})
		},
	}
}

func newUserSetRoleCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <username> <role>",
		Short: "Change the profile role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				user, err := lookupUser(ctx, c, args[0])
				if err != nil {
					return err
				}
				profile, err := c.Profiles.SetRole(ctx, service.SystemActor(), user.ID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", success("✓"), user.Username, c.Catalog.RoleLabel(profile.Role))
				return nil
			})
		},
	}
}

func newUserActiveCommand(root *RootOptions, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				user, err := lookupUser(ctx, c, args[0])
				if err != nil {
					return err
				}
				updated, err := c.Users.SetActive(ctx, service.SystemActor(), user.ID, active)
				if err != nil {
					return err
				}
				state := success("active")
				if !updated.IsActive {
					state = warn("inactive")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", updated.Username, state)
				return nil
			})
		},
	}
}

func lookupUser(ctx context.Context, c *app.Container, username string) (*domain.User, error) {
	user, err := c.Store.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
