package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tkdb/internal/storage"
	"tkdb/internal/tk"
)

var (
	eventComponent   string
	eventToolKit     string
	eventName        string
	eventDescription string
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Record and query component version events",
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record an event for a component version",
	Args:  cobra.NoArgs,
	RunE:  withApp(runEventAdd),
}

var eventLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent event of a kind for a component version",
	Args:  cobra.NoArgs,
	RunE:  withApp(runEventLatest),
}

func init() {
	for _, c := range []*cobra.Command{eventAddCmd, eventLatestCmd} {
		c.Flags().StringVar(&eventComponent, "component", "", "Component name (required)")
		c.Flags().StringVar(&eventToolKit, "toolkit", "", "Tool kit name (required)")
		c.Flags().StringVar(&eventName, "event", "", "Event name, e.g. BUILD (required)")
		for _, f := range []string{"component", "toolkit", "event"} {
			_ = c.MarkFlagRequired(f)
		}
	}
	eventAddCmd.Flags().StringVar(&eventDescription, "description", "", "Description")

	eventCmd.AddCommand(eventAddCmd, eventLatestCmd)
	rootCmd.AddCommand(eventCmd)
}

// eventTarget resolves the component version and event name from the flags
func eventTarget(ctx context.Context, s *storage.Session) (*tk.ComponentVersion, *tk.EventName, error) {
	component, err := tk.NewComponentRepository().LookupByName(ctx, s, eventComponent, storage.ExcludeDeleted)
	if err != nil {
		return nil, nil, err
	}
	kit, err := tk.NewToolKitRepository().LookupByName(ctx, s, eventToolKit, storage.ExcludeDeleted)
	if err != nil {
		return nil, nil, err
	}
	cv, err := tk.NewComponentVersionRepository().LookupByComponentAndToolKit(ctx, s, component, kit)
	if err != nil {
		return nil, nil, err
	}
	name, err := tk.NewEventNameRepository().LookupByName(ctx, s, eventName)
	if err != nil {
		return nil, nil, err
	}
	return cv, name, nil
}

func runEventAdd(ctx context.Context, a *app, args []string) error {
	by, err := a.actor(ctx)
	if err != nil {
		return err
	}
	cv, name, err := eventTarget(ctx, a.s)
	if err != nil {
		return err
	}
	e := tk.NewEvent(name, cv, eventDescription)
	if err := tk.NewEventRepository().Add(ctx, a.s, e, by); err != nil {
		return err
	}
	return a.print(one(eventTable([]*tk.Event{e})))
}

func runEventLatest(ctx context.Context, a *app, args []string) error {
	cv, name, err := eventTarget(ctx, a.s)
	if err != nil {
		return err
	}
	e, ok, err := tk.NewEventRepository().Latest(ctx, a.s, cv, name)
	if err != nil {
		return err
	}
	if !ok {
		return a.print(message(fmt.Sprintf("No %s event for %s in %s", name.Name(), eventComponent, eventToolKit)))
	}
	if _, err := e.LoadEventName(ctx, a.s); err != nil {
		return err
	}
	return a.print(one(eventTable([]*tk.Event{e})))
}
