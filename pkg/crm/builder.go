package crm

import (
	"fmt"
	"strings"
)

// clauseBuilder accumulates positional SQL fragments and their args.
// Used for both WHERE conditions and UPDATE set lists.
type clauseBuilder struct {
	clauses []string
	args    []interface{}
}

// add appends a fragment whose %d verb receives the next placeholder
// index, e.g. add("status = $%d", status)
func (b *clauseBuilder) add(format string, value interface{}) {
	b.args = append(b.args, value)
	b.clauses = append(b.clauses, fmt.Sprintf(format, len(b.args)))
}

// addSearch appends a case-insensitive substring match ORed over the
// given columns, all bound to one placeholder
func (b *clauseBuilder) addSearch(search string, columns ...string) {
	b.args = append(b.args, "%"+search+"%")
	n := len(b.args)
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", col, n)
	}
	b.clauses = append(b.clauses, "("+strings.Join(parts, " OR ")+")")
}

// nextArg appends a bare argument and returns its placeholder index
func (b *clauseBuilder) nextArg(value interface{}) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *clauseBuilder) empty() bool {
	return len(b.clauses) == 0
}

// where renders " WHERE a AND b" or nothing
func (b *clauseBuilder) where() string {
	if b.empty() {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// set renders "a, b" for an UPDATE set list
func (b *clauseBuilder) set() string {
	return strings.Join(b.clauses, ", ")
}
