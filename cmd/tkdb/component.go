package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tkdb/internal/storage"
	"tkdb/internal/tk"
)

var (
	componentType        string
	componentDescription string
	componentListType    string
)

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Manage components",
}

var componentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a component",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runComponentAdd),
}

var componentGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show one component",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runComponentGet),
}

var componentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List components",
	Args:  cobra.NoArgs,
	RunE:  withApp(runComponentList),
}

var componentSearchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Find components by name, '*' is a wildcard",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runComponentSearch),
}

var componentDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Soft-delete a component",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runComponentDelete),
}

func init() {
	componentAddCmd.Flags().StringVar(&componentType, "type", "", "Component type name, e.g. LIBRARY (required)")
	componentAddCmd.Flags().StringVar(&componentDescription, "description", "", "Description")
	_ = componentAddCmd.MarkFlagRequired("type")
	componentListCmd.Flags().StringVar(&componentListType, "type", "", "Only components of this type")

	componentCmd.AddCommand(componentAddCmd, componentGetCmd, componentListCmd, componentSearchCmd, componentDeleteCmd)
	rootCmd.AddCommand(componentCmd)
}

// loadComponentTypes resolves the type reference of every component
func loadComponentTypes(ctx context.Context, s *storage.Session, components []*tk.Component) error {
	for _, c := range components {
		if _, err := c.LoadComponentType(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func printComponents(ctx context.Context, a *app, components []*tk.Component, single bool) error {
	if err := loadComponentTypes(ctx, a.s, components); err != nil {
		return err
	}
	t := componentTable(components)
	if single {
		t = one(t)
	}
	return a.print(t)
}

func runComponentAdd(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	ct, err := tk.NewComponentTypeRepository().LookupByName(ctx, a.s, componentType)
	if err != nil {
		return err
	}
	c := tk.NewComponent(args[0], componentDescription, ct)
	if err := tk.NewComponentRepository().Add(ctx, a.s, c, by); err != nil {
		return err
	}
	return a.print(one(componentTable([]*tk.Component{c})))
}

func runComponentGet(ctx context.Context, a *app, args []string) error {
	c, err := tk.NewComponentRepository().LookupByName(ctx, a.s, args[0], storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	return printComponents(ctx, a, []*tk.Component{c}, true)
}

func runComponentList(ctx context.Context, a *app, args []string) error {
	repo := tk.NewComponentRepository()
	var (
		components []*tk.Component
		err        error
	)
	if componentListType != "" {
		ct, lerr := tk.NewComponentTypeRepository().LookupByName(ctx, a.s, componentListType)
		if lerr != nil {
			return lerr
		}
		components, err = repo.ListByType(ctx, a.s, ct)
	} else {
		components, err = repo.List(ctx, a.s)
	}
	if err != nil {
		return err
	}
	return printComponents(ctx, a, components, false)
}

func runComponentSearch(ctx context.Context, a *app, args []string) error {
	components, err := tk.NewComponentRepository().Search(ctx, a.s, args[0])
	if err != nil {
		return err
	}
	return printComponents(ctx, a, components, false)
}

func runComponentDelete(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	repo := tk.NewComponentRepository()
	c, err := repo.LookupByName(ctx, a.s, args[0], storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, a.s, c, by); err != nil {
		return err
	}
	return a.print(message(fmt.Sprintf("Deleted component %s", c.Name())))
}
