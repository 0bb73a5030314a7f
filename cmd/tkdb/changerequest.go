package main

import (
	"context"

	"github.com/spf13/cobra"

	"tkdb/internal/storage"
	"tkdb/internal/tk"
)

var (
	crHeadline    string
	crDescription string
	crStatus      string
	crListStatus  string
	crType        string
	crSeverity    string
	crComponent   string
	crToolKit     string
	crLocation    string
	crPattern     string
	crDeleted     bool
)

var crCmd = &cobra.Command{
	Use:   "cr",
	Short: "Manage change requests",
}

var crAddCmd = &cobra.Command{
	Use:   "add <cq-name>",
	Short: "Add a change request",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runCRAdd),
}

var crGetCmd = &cobra.Command{
	Use:   "get <cq-name>",
	Short: "Show one change request",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runCRGet),
}

var crStatusCmd = &cobra.Command{
	Use:   "status <cq-name> <status>",
	Short: "Change the status of a change request",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runCRStatus),
}

var crHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Change requests delivered in a component's version of a tool kit",
	Long: `Lists the change requests linked to the component version of --component
in --toolkit. With --location only versions installed there are considered.

Examples:
  tkdb cr history --component libparse --toolkit TK-2026.1.0
  tkdb cr history --component libparse --toolkit TK-2026.1.0 --location STAGING`,
	Args: cobra.NoArgs,
	RunE: withApp(runCRHistory),
}

var crListCmd = &cobra.Command{
	Use:   "list",
	Short: "List change requests",
	Args:  cobra.NoArgs,
	RunE:  withApp(runCRList),
}

func init() {
	crAddCmd.Flags().StringVar(&crHeadline, "headline", "", "One-line summary")
	crAddCmd.Flags().StringVar(&crDescription, "description", "", "Description")
	crAddCmd.Flags().StringVar(&crStatus, "status", "RESERVED", "Status name")
	crAddCmd.Flags().StringVar(&crType, "type", "", "Type name, e.g. DEFECT (required)")
	crAddCmd.Flags().StringVar(&crSeverity, "severity", "", "Severity name (required)")
	crAddCmd.Flags().StringVar(&crComponent, "component", "", "Component name (required)")
	for _, f := range []string{"type", "severity", "component"} {
		_ = crAddCmd.MarkFlagRequired(f)
	}

	crHistoryCmd.Flags().StringVar(&crComponent, "component", "", "Component name (required)")
	crHistoryCmd.Flags().StringVar(&crToolKit, "toolkit", "", "Tool kit name (required)")
	crHistoryCmd.Flags().StringVar(&crLocation, "location", "", "Only versions installed at this location")
	_ = crHistoryCmd.MarkFlagRequired("component")
	_ = crHistoryCmd.MarkFlagRequired("toolkit")

	crListCmd.Flags().StringVar(&crComponent, "component", "", "Only this component")
	crListCmd.Flags().StringVar(&crListStatus, "status", "", "Only this status")
	crListCmd.Flags().StringVar(&crType, "type", "", "Only this type")
	crListCmd.Flags().StringVar(&crSeverity, "severity", "", "Only this severity")
	crListCmd.Flags().StringVar(&crPattern, "pattern", "", "Match CQ name or headline, '*' is a wildcard")
	crListCmd.Flags().BoolVar(&crDeleted, "include-deleted", false, "Include deleted change requests")

	crCmd.AddCommand(crAddCmd, crGetCmd, crStatusCmd, crHistoryCmd, crListCmd)
	rootCmd.AddCommand(crCmd)
}

func printChangeRequests(ctx context.Context, a *app, crs []*tk.ChangeRequest, single bool) error {
	for _, cr := range crs {
		if err := cr.LoadAll(ctx, a.s); err != nil {
			return err
		}
	}
	t := changeRequestTable(crs)
	if single {
		t = one(t)
	}
	return a.print(t)
}

func runCRAdd(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	status, err := tk.NewChangeRequestStatusRepository().LookupByName(ctx, a.s, crStatus)
	if err != nil {
		return err
	}
	typ, err := tk.NewChangeRequestTypeRepository().LookupByName(ctx, a.s, crType)
	if err != nil {
		return err
	}
	severity, err := tk.NewChangeRequestSeverityRepository().LookupByName(ctx, a.s, crSeverity)
	if err != nil {
		return err
	}
	component, err := tk.NewComponentRepository().LookupByName(ctx, a.s, crComponent, storage.ExcludeDeleted)
	if err != nil {
		return err
	}

	cr := tk.NewChangeRequest(args[0], crHeadline, crDescription, status, typ, severity, component)
	if err := tk.NewChangeRequestRepository().Add(ctx, a.s, cr, by); err != nil {
		return err
	}
	return a.print(one(changeRequestTable([]*tk.ChangeRequest{cr})))
}

func runCRGet(ctx context.Context, a *app, args []string) error {
	cr, err := tk.NewChangeRequestRepository().LookupByName(ctx, a.s, args[0], storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	return printChangeRequests(ctx, a, []*tk.ChangeRequest{cr}, true)
}

func runCRStatus(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	repo := tk.NewChangeRequestRepository()
	cr, err := repo.LookupByName(ctx, a.s, args[0], storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	status, err := tk.NewChangeRequestStatusRepository().LookupByName(ctx, a.s, args[1])
	if err != nil {
		return err
	}
	if err := repo.UpdateStatus(ctx, a.s, cr, status, by); err != nil {
		return err
	}
	return printChangeRequests(ctx, a, []*tk.ChangeRequest{cr}, true)
}

func runCRHistory(ctx context.Context, a *app, args []string) error {
	component, err := tk.NewComponentRepository().LookupByName(ctx, a.s, crComponent, storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	kit, err := tk.NewToolKitRepository().LookupByName(ctx, a.s, crToolKit, storage.ExcludeDeleted)
	if err != nil {
		return err
	}
	var location *tk.Location
	if crLocation != "" {
		if location, err = tk.NewLocationRepository().LookupByName(ctx, a.s, crLocation); err != nil {
			return err
		}
	}

	history, err := tk.NewChangeRequestRepository().History(ctx, a.s, component, kit, location)
	if err != nil {
		return err
	}
	return printChangeRequests(ctx, a, history, false)
}

func runCRList(ctx context.Context, a *app, args []string) error {
	f := tk.ChangeRequestFilter{Pattern: crPattern}
	if crDeleted {
		f.Deleted = storage.IncludeDeleted
	}

	var err error
	if crComponent != "" {
		if f.Component, err = tk.NewComponentRepository().LookupByName(ctx, a.s, crComponent, storage.IncludeDeleted); err != nil {
			return err
		}
	}
	if crListStatus != "" {
		if f.Status, err = tk.NewChangeRequestStatusRepository().LookupByName(ctx, a.s, crListStatus); err != nil {
			return err
		}
	}
	if crType != "" {
		if f.Type, err = tk.NewChangeRequestTypeRepository().LookupByName(ctx, a.s, crType); err != nil {
			return err
		}
	}
	if crSeverity != "" {
		if f.Severity, err = tk.NewChangeRequestSeverityRepository().LookupByName(ctx, a.s, crSeverity); err != nil {
			return err
		}
	}

	crs, err := tk.NewChangeRequestRepository().List(ctx, a.s, f)
	if err != nil {
		return err
	}
	return printChangeRequests(ctx, a, crs, false)
}
