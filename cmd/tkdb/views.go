package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tkdb/internal/export"
	"tkdb/internal/storage"
	"tkdb/internal/tk"
)

// table renders records as rows in human format and as the records
// themselves in JSON. A single table marshals its only record as an object.
type table[T any] struct {
	items  []*T
	header []string
	row    func(*T) []string
	single bool
}

func (t *table[T]) Header() []string { return t.header }

func (t *table[T]) Rows() [][]string {
	rows := make([][]string, 0, len(t.items))
	for _, it := range t.items {
		rows = append(rows, t.row(it))
	}
	return rows
}

func (t *table[T]) MarshalJSON() ([]byte, error) {
	if t.single && len(t.items) == 1 {
		return json.Marshal(t.items[0])
	}
	return json.Marshal(t.items)
}

func one[T any](t *table[T]) *table[T] {
	t.single = true
	return t
}

func ptrs[T any](in []T) []*T {
	out := make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}

type named interface{ Name() string }

// refName shows a loaded reference by name and an unloaded one by id
func refName[K storage.ID, T any](r storage.Ref[K, T]) string {
	if !r.Valid() {
		return "-"
	}
	if rec, ok := r.Record(); ok {
		if n, ok := any(rec).(named); ok {
			return n.Name()
		}
	}
	return fmt.Sprint(r.ID())
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func userTable(users []*tk.User) *table[tk.User] {
	return &table[tk.User]{
		items:  users,
		header: []string{"ID", "INTRANET_ID", "NAME", "EMAIL", "CREATED_BY", "CREATED_ON"},
		row: func(u *tk.User) []string {
			return []string{
				strconv.FormatInt(u.ID(), 10), u.IntranetID(), u.DisplayName(), orDash(u.Email()),
				u.Audit().CreatedBy, when(u.Audit().CreatedOn),
			}
		},
	}
}

func componentTable(components []*tk.Component) *table[tk.Component] {
	return &table[tk.Component]{
		items:  components,
		header: []string{"ID", "NAME", "TYPE", "DESCRIPTION"},
		row: func(c *tk.Component) []string {
			return []string{strconv.Itoa(int(c.ID())), c.Name(), refName(c.ComponentType()), orDash(c.Description())}
		},
	}
}

func releaseTable(releases []*tk.Release) *table[tk.Release] {
	return &table[tk.Release]{
		items:  releases,
		header: []string{"ID", "NAME", "DESCRIPTION", "CREATED_ON"},
		row: func(r *tk.Release) []string {
			return []string{strconv.Itoa(int(r.ID())), r.Name(), orDash(r.Description()), when(r.Audit().CreatedOn)}
		},
	}
}

func toolKitTable(kits []*tk.ToolKit) *table[tk.ToolKit] {
	return &table[tk.ToolKit]{
		items:  kits,
		header: []string{"ID", "NAME", "RELEASE", "STAGE", "DESCRIPTION"},
		row: func(k *tk.ToolKit) []string {
			return []string{
				strconv.Itoa(int(k.ID())), k.Name(), refName(k.Release()), refName(k.Stage()), orDash(k.Description()),
			}
		},
	}
}

func changeRequestTable(crs []*tk.ChangeRequest) *table[tk.ChangeRequest] {
	return &table[tk.ChangeRequest]{
		items:  crs,
		header: []string{"ID", "NAME", "STATUS", "TYPE", "SEVERITY", "COMPONENT", "HEADLINE"},
		row: func(cr *tk.ChangeRequest) []string {
			return []string{
				strconv.FormatInt(cr.ID(), 10), cr.Name(),
				refName(cr.Status()), refName(cr.Type()), refName(cr.Severity()), refName(cr.Component()),
				orDash(cr.Headline()),
			}
		},
	}
}

func lineageTable(rows []*tk.PackageLineage) *table[tk.PackageLineage] {
	return &table[tk.PackageLineage]{
		items:  rows,
		header: []string{"PACKAGE", "REVISION", "COMPONENT", "TOOL_KIT", "RELEASE", "STAGE", "PLATFORM"},
		row: func(l *tk.PackageLineage) []string {
			return []string{
				l.PackageName, strconv.FormatInt(l.Revision, 10), l.ComponentName,
				l.ToolKitName, l.ReleaseName, l.StageName, l.PlatformName,
			}
		},
	}
}

func eventTable(events []*tk.Event) *table[tk.Event] {
	return &table[tk.Event]{
		items:  events,
		header: []string{"ID", "EVENT", "DESCRIPTION", "CREATED_BY", "CREATED_ON"},
		row: func(e *tk.Event) []string {
			return []string{
				strconv.FormatInt(e.ID(), 10), refName(e.EventName()), orDash(e.Description()),
				e.Audit().CreatedBy, when(e.Audit().CreatedOn),
			}
		},
	}
}

func seedTable(counts []tk.SeedCount) *table[tk.SeedCount] {
	return &table[tk.SeedCount]{
		items:  ptrs(counts),
		header: []string{"TABLE", "ADDED", "SKIPPED"},
		row: func(c *tk.SeedCount) []string {
			return []string{c.Table, strconv.Itoa(c.Added), strconv.Itoa(c.Skipped)}
		},
	}
}

func exportTable(summary *export.Summary) *table[export.TableCount] {
	return &table[export.TableCount]{
		items:  ptrs(summary.Tables),
		header: []string{"TABLE", "ROWS"},
		row: func(c *export.TableCount) []string {
			return []string{c.Table, strconv.FormatInt(c.Rows, 10)}
		},
	}
}
