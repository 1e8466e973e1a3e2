// Package catalog holds the fixed table of operations the server exposes,
// their advertised descriptors and required-argument validation.
package catalog

import "github.com/bdubs00/pscale-context-server/internal/protocol"

const (
	ListDatabases = "list_databases"
	ListBranches  = "list_branches"
	GetSchema     = "get_schema"
	RunQuery      = "run_query"
)

// SchemaDraft is the JSON-schema dialect of every parameter schema.
const SchemaDraft = "http://json-schema.org/draft-07/schema#"

// Param is a required string parameter of an operation.
type Param struct {
	Name        string
	Description string
}

// Operation is one entry of the fixed operation table. Params are listed
// in validation order.
type Operation struct {
	Name        string
	Description string
	Params      []Param
}

var (
	paramDatabase = Param{Name: "database", Description: "The name of the database"}
	paramBranch   = Param{Name: "branch", Description: "The name of the branch"}
	paramQuery    = Param{Name: "query", Description: "The SQL query to execute"}
)

var operations = []Operation{
	{
		Name:        ListDatabases,
		Description: "Lists all databases in the connected PlanetScale account",
	},
	{
		Name:        ListBranches,
		Description: "Lists all branches for a specific database",
		Params:      []Param{paramDatabase},
	},
	{
		Name:        GetSchema,
		Description: "Gets the schema for a specific database and branch",
		Params:      []Param{paramDatabase, paramBranch},
	},
	{
		Name:        RunQuery,
		Description: "Runs a SQL query against a specific database and branch",
		Params:      []Param{paramDatabase, paramBranch, paramQuery},
	},
}

// Operations returns the operation table in declaration order.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// Lookup finds an operation by exact, case-sensitive name.
func Lookup(name string) (Operation, bool) {
	for _, op := range operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Arguments are the validated required parameters of a call.
type Arguments map[string]string

// Validate checks that every required parameter is present as a string
// and returns them. Only the first missing parameter is reported.
func (o Operation) Validate(call protocol.FunctionCall) (Arguments, error) {
	args := make(Arguments, len(o.Params))
	for _, p := range o.Params {
		v, ok := call.StringArg(p.Name)
		if !ok {
			return nil, &MissingParamError{Param: p.Name}
		}
		args[p.Name] = v
	}
	return args, nil
}

// UnknownFunctionError is returned for a call naming no known operation.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return "Unknown function: " + e.Name
}

// MissingParamError is returned when a required parameter is absent or
// not a string.
type MissingParamError struct {
	Param string
}

func (e *MissingParamError) Error() string {
	return e.Param + " parameter is required"
}
