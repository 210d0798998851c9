package crm

import (
	"fmt"
	"strings"
)

// RefSpec declares one expandable reference: which foreign key on the
// entity expands, into which table, projecting which columns. Stores
// build their joins from these declarations rather than hand-writing
// per-handler joins, so the expansion surface is visible in one place.
type RefSpec struct {
	Column string
	Table  string
	Alias  string
	Fields []string
}

var userRefFields = []string{"first_name", "last_name"}

// projections is the per-entity reference-expansion table
var projections = map[string][]RefSpec{
	"leads": {
		{Column: "assigned_to", Table: "users", Alias: "assignee", Fields: userRefFields},
		{Column: "source_id", Table: "campaigns", Alias: "source", Fields: []string{"name"}},
	},
	"contacts": {
		{Column: "assigned_to", Table: "users", Alias: "assignee", Fields: userRefFields},
		{Column: "account_id", Table: "accounts", Alias: "account", Fields: []string{"name"}},
	},
	"accounts": {
		{Column: "assigned_to", Table: "users", Alias: "assignee", Fields: userRefFields},
	},
	"deals": {
		{Column: "assigned_to", Table: "users", Alias: "assignee", Fields: userRefFields},
		{Column: "account_id", Table: "accounts", Alias: "account", Fields: []string{"name"}},
		{Column: "contact_id", Table: "contacts", Alias: "contact", Fields: []string{"first_name", "last_name"}},
		{Column: "source_id", Table: "campaigns", Alias: "source", Fields: []string{"name"}},
	},
	"tasks": {
		{Column: "assigned_to", Table: "users", Alias: "assignee", Fields: userRefFields},
	},
	"campaigns": {
		{Column: "created_by", Table: "users", Alias: "creator", Fields: userRefFields},
	},
	"communications": {
		{Column: "created_by", Table: "users", Alias: "creator", Fields: userRefFields},
	},
}

// projectionJoins renders the LEFT JOINs declared for a table
func projectionJoins(table, baseAlias string) string {
	var joins []string
	for _, ref := range projections[table] {
		joins = append(joins, fmt.Sprintf(
			"LEFT JOIN %s %s ON %s.id = %s.%s",
			ref.Table, ref.Alias, ref.Alias, baseAlias, ref.Column))
	}
	return strings.Join(joins, " ")
}

// projectionColumns renders the projected columns declared for a table,
// in declaration order so scans can follow it
func projectionColumns(table string) string {
	var cols []string
	for _, ref := range projections[table] {
		for _, field := range ref.Fields {
			cols = append(cols, ref.Alias+"."+field)
		}
	}
	return strings.Join(cols, ", ")
}
