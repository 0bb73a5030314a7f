package main

import (
	"context"

	"github.com/spf13/cobra"

	"tkdb/internal/storage"
	"tkdb/internal/tk"
)

var (
	toolKitRelease     string
	toolKitStage       string
	toolKitDescription string
	toolKitListRelease string
)

var toolKitCmd = &cobra.Command{
	Use:     "toolkit",
	Aliases: []string{"kit"},
	Short:   "Manage tool kits",
}

var toolKitAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a tool kit to a release",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runToolKitAdd),
}

var toolKitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tool kits",
	Args:  cobra.NoArgs,
	RunE:  withApp(runToolKitList),
}

var toolKitStageCmd = &cobra.Command{
	Use:   "stage <name> <stage>",
	Short: "Move a tool kit to another stage",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runToolKitStage),
}

func init() {
	toolKitAddCmd.Flags().StringVar(&toolKitRelease, "release", "", "Release name (required)")
	toolKitAddCmd.Flags().StringVar(&toolKitStage, "stage", "DEVELOPMENT", "Initial stage name")
	toolKitAddCmd.Flags().StringVar(&toolKitDescription, "description", "", "Description")
	_ = toolKitAddCmd.MarkFlagRequired("release")
	toolKitListCmd.Flags().StringVar(&toolKitListRelease, "release", "", "Only tool kits of this release")

	toolKitCmd.AddCommand(toolKitAddCmd, toolKitListCmd, toolKitStageCmd)
	rootCmd.AddCommand(toolKitCmd)
}

func printToolKits(ctx context.Context, a *app, kits []*tk.ToolKit, single bool) error {
	for _, k := range kits {
		if _, err := k.LoadRelease(ctx, a.s); err != nil {
			return err
		}
		if _, err := k.LoadStage(ctx, a.s); err != nil {
			return err
		}
	}
	t := toolKitTable(kits)
	if single {
		t = one(t)
	}
	return a.print(t)
}

func runToolKitAdd(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	rel, err := tk.NewReleaseRepository().LookupByName(ctx, a.s, toolKitRelease, storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	stage, err := tk.NewStageNameRepository().LookupByName(ctx, a.s, toolKitStage)
	if err != nil {
		return err
	}
	kit := tk.NewToolKit(args[0], toolKitDescription, rel, stage)
	if err := tk.NewToolKitRepository().Add(ctx, a.s, kit, by); err != nil {
		return err
	}
	return a.print(one(toolKitTable([]*tk.ToolKit{kit})))
}

func runToolKitList(ctx context.Context, a *app, args []string) error {
	repo := tk.NewToolKitRepository()
	var (
		kits []*tk.ToolKit
		err  error
	)
	if toolKitListRelease != "" {
		rel, lerr := tk.NewReleaseRepository().LookupByName(ctx, a.s, toolKitListRelease, storage.ExcludeDeleted)
		if lerr != nil {
			return lerr
		}
		kits, err = repo.ListByRelease(ctx, a.s, rel)
	} else {
		kits, err = repo.List(ctx, a.s)
	}
	if err != nil {
		return err
	}
	return printToolKits(ctx, a, kits, false)
}

func runToolKitStage(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	repo := tk.NewToolKitRepository()
	kit, err := repo.LookupByName(ctx, a.s, args[0], storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	stage, err := tk.NewStageNameRepository().LookupByName(ctx, a.s, args[1])
	if err != nil {
		return err
	}
	if err := repo.SetStage(ctx, a.s, kit, stage, by); err != nil {
		return err
	}
	return printToolKits(ctx, a, []*tk.ToolKit{kit}, true)
}
