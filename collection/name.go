package collection

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/viant/myvector/vector"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultSchema qualifies two part names.
const DefaultSchema = "main"

// Name identifies an indexed column as schema.table.column.
type Name struct {
	Schema string
	Table  string
	Column string
}

// ParseName accepts "schema.table.column" or "table.column".
func ParseName(s string) (Name, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	var n Name
	switch len(parts) {
	case 2:
		n = Name{Schema: DefaultSchema, Table: parts[0], Column: parts[1]}
	case 3:
		n = Name{Schema: parts[0], Table: parts[1], Column: parts[2]}
	default:
		return n, fmt.Errorf("%w: index name %q must be schema.table.column", vector.ErrInvalidArgument, s)
	}
	for _, p := range []string{n.Schema, n.Table, n.Column} {
		if !identRe.MatchString(p) {
			return n, fmt.Errorf("%w: invalid identifier %q in index name %q", vector.ErrInvalidArgument, p, s)
		}
	}
	return n, nil
}

func (n Name) String() string { return n.Schema + "." + n.Table + "." + n.Column }

// Source returns the qualified base table.
func (n Name) Source() string { return n.Schema + "." + n.Table }

// CheckColumn validates a bare column identifier.
func CheckColumn(col string) error {
	if !identRe.MatchString(col) {
		return fmt.Errorf("%w: invalid column name %q", vector.ErrInvalidArgument, col)
	}
	return nil
}
