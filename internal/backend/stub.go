package backend

import (
	"context"
	"strings"

	"github.com/bdubs00/pscale-context-server/internal/catalog"
)

// Database is one entry of a database listing.
type Database struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
}

// Branch is one entry of a branch listing.
type Branch struct {
	Name       string `json:"name"`
	Database   string `json:"database"`
	Production bool   `json:"production"`
}

// Column describes a table column.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Primary bool   `json:"primary,omitempty"`
}

// Table describes one table of a schema.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// UserRow is a row of the placeholder query result.
type UserRow struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type (
	DatabaseList struct {
		Databases []Database `json:"databases"`
	}
	BranchList struct {
		Branches []Branch `json:"branches"`
	}
	SchemaResult struct {
		Tables []Table `json:"tables"`
	}
	RowsResult struct {
		Rows []UserRow `json:"rows"`
	}
	ExecResult struct {
		AffectedRows int `json:"affected_rows"`
	}
)

// Stub serves fixed placeholder data. It holds no state.
type Stub struct{}

// NewStub creates the placeholder backend.
func NewStub() *Stub {
	return &Stub{}
}

// Execute returns canned data for op.
func (s *Stub) Execute(_ context.Context, op string, args catalog.Arguments) (any, error) {
	switch op {
	case catalog.ListDatabases:
		return DatabaseList{Databases: []Database{
			{Name: "example_db", Organization: "example_org"},
		}}, nil
	case catalog.ListBranches:
		db := args["database"]
		return BranchList{Branches: []Branch{
			{Name: "main", Database: db, Production: true},
			{Name: "dev", Database: db, Production: false},
		}}, nil
	case catalog.GetSchema:
		return SchemaResult{Tables: []Table{
			{Name: "users", Columns: []Column{
				{Name: "id", Type: "INT", Primary: true},
				{Name: "name", Type: "VARCHAR(255)"},
				{Name: "email", Type: "VARCHAR(255)"},
			}},
			{Name: "posts", Columns: []Column{
				{Name: "id", Type: "INT", Primary: true},
				{Name: "user_id", Type: "INT"},
				{Name: "title", Type: "VARCHAR(255)"},
				{Name: "content", Type: "TEXT"},
			}},
		}}, nil
	case catalog.RunQuery:
		// Placeholder routing, not SQL parsing.
		if strings.Contains(strings.ToLower(args["query"]), "select") {
			return RowsResult{Rows: []UserRow{
				{ID: 1, Name: "John Doe", Email: "john@example.com"},
				{ID: 2, Name: "Jane Smith", Email: "jane@example.com"},
			}}, nil
		}
		return ExecResult{AffectedRows: 1}, nil
	default:
		return nil, &UnsupportedOperationError{Op: op}
	}
}
