package storage

import (
	"fmt"
	"strings"
)

// Deleted selects whether soft-deleted rows are visible to a lookup
type Deleted int

const (
	// ExcludeDeleted hides rows whose DELETED_ON is set
	ExcludeDeleted Deleted = iota
	// IncludeDeleted returns rows regardless of DELETED_ON
	IncludeDeleted
)

// Query assembles a statement from fragments and tracks its positional
// arguments. Every fragment must carry exactly as many arguments as it has
// '?' placeholders; a mismatch is kept in Err and reported when the query runs.
type Query struct {
	sb       strings.Builder
	args     []any
	hasWhere bool
	err      error
}

// NewQuery starts a query with the given fragment
func NewQuery(fragment string, args ...any) *Query {
	q := &Query{}
	return q.Append(fragment, args...)
}

// Append adds a fragment and its arguments
func (q *Query) Append(fragment string, args ...any) *Query {
	if n := strings.Count(fragment, "?"); n != len(args) && q.err == nil {
		q.err = fmt.Errorf("fragment %q has %d placeholders but %d arguments", fragment, n, len(args))
	}
	if q.sb.Len() > 0 {
		q.sb.WriteByte(' ')
	}
	q.sb.WriteString(fragment)
	q.args = append(q.args, args...)
	return q
}

// Where adds a condition, joining with AND after the first one
func (q *Query) Where(cond string, args ...any) *Query {
	kw := "WHERE "
	if q.hasWhere {
		kw = "AND "
	}
	q.hasWhere = true
	return q.Append(kw+cond, args...)
}

// WhereIf adds the condition only when ok is true
func (q *Query) WhereIf(ok bool, cond string, args ...any) *Query {
	if !ok {
		return q
	}
	return q.Where(cond, args...)
}

// NotDeleted filters out soft-deleted rows of the given column prefix
// ("" or "c.") unless deleted is IncludeDeleted.
func (q *Query) NotDeleted(prefix string, deleted Deleted) *Query {
	return q.WhereIf(deleted == ExcludeDeleted, prefix+"DELETED_ON IS NULL")
}

// OrderBy appends an ORDER BY clause
func (q *Query) OrderBy(cols ...string) *Query {
	if len(cols) == 0 {
		return q
	}
	return q.Append("ORDER BY " + strings.Join(cols, ", "))
}

// String returns the SQL text with '?' placeholders
func (q *Query) String() string {
	return q.sb.String()
}

// Args returns the positional arguments in placeholder order
func (q *Query) Args() []any {
	return q.args
}

// Err reports a placeholder/argument mismatch
func (q *Query) Err() error {
	return q.err
}

// LikeEscape follows every LIKE ? built from Like
const LikeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`, "*", "%")

// Like turns a user pattern with '*' wildcards into a SQL LIKE pattern. Any
// '%' or '_' in the pattern matches literally.
func Like(pattern string) string {
	return likeEscaper.Replace(pattern)
}
