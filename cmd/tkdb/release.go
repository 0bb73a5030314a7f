package main

import (
	"context"

	"github.com/spf13/cobra"

	"tkdb/internal/tk"
)

var releaseDescription string

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Manage releases",
}

var releaseAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a release",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runReleaseAdd),
}

var releaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List releases",
	Args:  cobra.NoArgs,
	RunE:  withApp(runReleaseList),
}

func init() {
	releaseAddCmd.Flags().StringVar(&releaseDescription, "description", "", "Description")
	releaseCmd.AddCommand(releaseAddCmd, releaseListCmd)
	rootCmd.AddCommand(releaseCmd)
}

func runReleaseAdd(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	rel := tk.NewRelease(args[0], releaseDescription)
	if err := tk.NewReleaseRepository().Add(ctx, a.s, rel, by); err != nil {
		return err
	}
	return a.print(one(releaseTable([]*tk.Release{rel})))
}

func runReleaseList(ctx context.Context, a *app, args []string) error {
	releases, err := tk.NewReleaseRepository().List(ctx, a.s)
	if err != nil {
		return err
	}
	return a.print(releaseTable(releases))
}
