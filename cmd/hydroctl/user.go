package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hydro360/internal/auth"
	"hydro360/internal/storage"
	"hydro360/internal/validation"
	"hydro360/models"
	"hydro360/repository"
)

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(c.userCreateCmd(), c.userSetRoleCmd(), c.userGrantCmd(), c.userDeleteCmd())
	return cmd
}

// withStore opens the configured store for the duration of fn.
func (c *cli) withStore(ctx context.Context, fn func(*repository.Store) error) error {
	store, err := storage.Open(ctx, c.cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *cli) lookup(ctx context.Context, store *repository.Store, email string) (*models.User, error) {
	u, err := store.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return u, nil
}

type createUserInput struct {
	FirstName  string `validate:"required,max=50"`
	LastName   string `validate:"max=50"`
	Email      string `validate:"required,email"`
	Password   string `validate:"required,password"`
	Phone      string `validate:"omitempty,phone"`
	Department string
	Role       string
}

func (c *cli) userCreateCmd() *cobra.Command {
	var in createUserInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account, typically the first superadmin",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Email = strings.ToLower(strings.TrimSpace(in.Email))
			if verr := validation.ValidateStruct(in); verr != nil {
				return errors.New(verr.First())
			}
			if !models.ValidRole(in.Role) {
				return fmt.Errorf("invalid role %q", in.Role)
			}
			hash, err := auth.HashPassword(in.Password, c.cfg.Auth.BcryptCost)
			if err != nil {
				return err
			}
			user := &models.User{
				FirstName:    in.FirstName,
				LastName:     in.LastName,
				Email:        in.Email,
				PasswordHash: hash,
				Phone:        in.Phone,
				Department:   in.Department,
				Role:         models.Role(in.Role),
			}

			return c.withStore(cmd.Context(), func(store *repository.Store) error {
				u, err := store.Users.Create(cmd.Context(), user)
				if errors.Is(err, repository.ErrDuplicateEmail) {
					return fmt.Errorf("user %s already exists", in.Email)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "created %s %s (%s)\n", u.Role, u.Email, u.ID)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringVar(&in.Department, "department", "", "department")
	f.StringVar(&in.Password, "password", "", "initial password")
	f.StringVar(&in.Role, "role", string(models.RoleUser), "role (user, admin, superadmin)")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) userSetRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role EMAIL ROLE",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.ValidRole(args[1]) {
				return fmt.Errorf("invalid role %q", args[1])
			}
			role := models.Role(args[1])
			return c.withStore(cmd.Context(), func(store *repository.Store) error {
				u, err := c.lookup(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				u, err = store.Users.Update(cmd.Context(), u.ID, repository.UserUpdate{Role: &role})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s is now %s\n", u.Email, u.Role)
				return nil
			})
		},
	}
}

func (c *cli) userGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant EMAIL PERMISSION...",
		Short: "Add explicit permissions to an account",
		Long:  "Permissions: " + permissionList(),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args[1:] {
				if !models.ValidPermission(p) {
					return fmt.Errorf("invalid permission %q", p)
				}
			}
			return c.withStore(cmd.Context(), func(store *repository.Store) error {
				u, err := c.lookup(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				perms := append([]models.Permission{}, u.Permissions...)
				for _, p := range args[1:] {
					if !hasPermission(perms, models.Permission(p)) {
						perms = append(perms, models.Permission(p))
					}
				}
				u, err = store.Users.Update(cmd.Context(), u.ID, repository.UserUpdate{Permissions: &perms})
				if err != nil {
					return err
				}
				granted := make([]string, 0, len(u.Permissions))
				for _, p := range u.Permissions {
					granted = append(granted, string(p))
				}
				fmt.Fprintf(c.out, "%s permissions: %s\n", u.Email, strings.Join(granted, ", "))
				return nil
			})
		},
	}
}

func (c *cli) userDeleteCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Delete an account together with the reports it submitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			return c.withStore(cmd.Context(), func(store *repository.Store) error {
				u, err := c.lookup(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				ok, err := store.Users.Delete(cmd.Context(), u.ID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no user with email %s", args[0])
				}
				fmt.Fprintf(c.out, "deleted %s (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the deletion")
	return cmd
}

func hasPermission(set []models.Permission, p models.Permission) bool {
	for _, have := range set {
		if have == p {
			return true
		}
	}
	return false
}

func permissionList() string {
	names := make([]string, 0, len(models.AllPermissions))
	for _, p := range models.AllPermissions {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
