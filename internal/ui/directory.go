package ui

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *App) customerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add [name]",
		Short: "Add a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.ensureService(ctx); err != nil {
				return err
			}
			id, err := a.store.AddCustomer(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("adding customer: %w", err)
			}
			a.dir.Refresh()
			fmt.Fprintf(a.out, "Added customer #%d: %s\n", id, args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.ensureService(ctx); err != nil {
				return err
			}
			all, err := a.dir.Customers(ctx)
			if err != nil {
				return fmt.Errorf("listing customers: %w", err)
			}
			for _, c := range all {
				fmt.Fprintf(a.out, "  %s  %s\n", formatMuted(fmt.Sprintf("#%-4d", c.ID)), c.Name)
			}
			return nil
		},
	})
	return cmd
}

func (a *App) contactCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage contacts",
	}
	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.ensureService(ctx); err != nil {
				return err
			}
			id, err := a.store.AddContact(ctx, strings.TrimSpace(args[0]), strings.TrimSpace(email))
			if err != nil {
				return fmt.Errorf("adding contact: %w", err)
			}
			a.dir.Refresh()
			fmt.Fprintf(a.out, "Added contact #%d: %s\n", id, args[0])
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "Contact email")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.ensureService(ctx); err != nil {
				return err
			}
			all, err := a.dir.Contacts(ctx)
			if err != nil {
				return fmt.Errorf("listing contacts: %w", err)
			}
			for _, c := range all {
				fmt.Fprintf(a.out, "  %s  %s  %s\n", formatMuted(fmt.Sprintf("#%-4d", c.ID)), c.Name, formatMuted(c.Email))
			}
			return nil
		},
	})
	return cmd
}

func (a *App) userCmd() *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a user",
		Long: `Add a user. User names are unique regardless of case.

Example:
  rendezvous user add alice --admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.ensureService(ctx); err != nil {
				return err
			}
			id, err := a.store.AddUser(ctx, strings.TrimSpace(args[0]), admin)
			if err != nil {
				return fmt.Errorf("adding user: %w", err)
			}
			a.dir.Refresh()
			role := "user"
			if admin {
				role = "admin"
			}
			fmt.Fprintf(a.out, "Added %s #%d: %s\n", role, id, args[0])
			return nil
		},
	}
	add.Flags().BoolVar(&admin, "admin", false, "Grant the admin role")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.ensureService(ctx); err != nil {
				return err
			}
			all, err := a.dir.Users(ctx)
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}
			for _, u := range all {
				line := fmt.Sprintf("  %s  %s", formatMuted(fmt.Sprintf("#%-4d", u.ID)), u.Name)
				if u.Admin {
					line += "  " + formatOngoing("admin")
				}
				fmt.Fprintln(a.out, line)
			}
			return nil
		},
	})
	return cmd
}
