package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tkdb/internal/storage"
	"tkdb/internal/tk"
)

var (
	userName          string
	userEmail         string
	userSearch        string
	userIncludeDelete bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <intranet-id>",
	Short: "Add a user",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runUserAdd),
}

var userGetCmd = &cobra.Command{
	Use:   "get <intranet-id>",
	Short: "Show one user",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runUserGet),
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  withApp(runUserList),
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <intranet-id>",
	Short: "Soft-delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runUserDelete),
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name (required)")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	_ = userAddCmd.MarkFlagRequired("name")
	userGetCmd.Flags().BoolVar(&userIncludeDelete, "include-deleted", false, "Also find deleted users")
	userListCmd.Flags().StringVar(&userSearch, "search", "", "Match intranet id or name, '*' is a wildcard")

	userCmd.AddCommand(userAddCmd, userGetCmd, userListCmd, userDeleteCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	u := tk.NewUser(args[0], userName, userEmail)
	if err := tk.NewUserRepository().Add(ctx, a.s, u, by); err != nil {
		return err
	}
	return a.print(one(userTable([]*tk.User{u})))
}

func runUserGet(ctx context.Context, a *app, args []string) error {
	deleted := storage.ExcludeDeleted
	if userIncludeDelete {
		deleted = storage.IncludeDeleted
	}
	u, err := tk.NewUserRepository().LookupByIntranetID(ctx, a.s, args[0], deleted)
	if err != nil {
		return err
	}
	return a.print(one(userTable([]*tk.User{u})))
}

func runUserList(ctx context.Context, a *app, args []string) error {
	repo := tk.NewUserRepository()
	var (
		users []*tk.User
		err   error
	)
	if userSearch != "" {
		users, err = repo.Search(ctx, a.s, userSearch)
	} else {
		users, err = repo.List(ctx, a.s)
	}
	if err != nil {
		return err
	}
	return a.print(userTable(users))
}

func runUserDelete(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	repo := tk.NewUserRepository()
	u, err := repo.LookupByIntranetID(ctx, a.s, args[0], storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, a.s, u, by); err != nil {
		return err
	}
	return a.print(message(fmt.Sprintf("Deleted user %s", u.IntranetID())))
}
