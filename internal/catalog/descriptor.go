package catalog

const (
	DefaultName        = "PlanetScale"
	DefaultDescription = "PlanetScale database operations for Zed"
)

// Property describes one parameter in a descriptor's schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Schema is the JSON-schema object advertised for an operation's parameters.
type Schema struct {
	Schema               string              `json:"$schema"`
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required"`
	AdditionalProperties bool                `json:"additional_properties"`
}

// Descriptor is the advertised metadata for one operation.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// SlashCommand is host UI metadata; it carries no behavior.
type SlashCommand struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Documentation string `json:"documentation"`
}

// Capabilities is the result payload of the startup announcement.
type Capabilities struct {
	Functions     []Descriptor   `json:"functions"`
	SlashCommands []SlashCommand `json:"slash_commands"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
}

// Descriptor builds the advertised metadata for o.
func (o Operation) Descriptor() Descriptor {
	schema := Schema{
		Schema:     SchemaDraft,
		Type:       "object",
		Properties: make(map[string]Property, len(o.Params)),
		Required:   make([]string, 0, len(o.Params)),
	}
	for _, p := range o.Params {
		schema.Properties[p.Name] = Property{Type: "string", Description: p.Description}
		schema.Required = append(schema.Required, p.Name)
	}
	return Descriptor{Name: o.Name, Description: o.Description, Parameters: schema}
}

var slashCommands = []SlashCommand{
	{
		Name:          "ps",
		Description:   "PlanetScale database operations",
		Documentation: "Run operations against PlanetScale databases",
	},
	{
		Name:          "ps-list-dbs",
		Description:   "Lists all databases in your PlanetScale account",
		Documentation: "Usage: /ps-list-dbs",
	},
	{
		Name:          "ps-list-branches",
		Description:   "Lists all branches for a specific database",
		Documentation: "Usage: /ps-list-branches <database>",
	},
	{
		Name:          "ps-schema",
		Description:   "Gets the schema for a specific database and branch",
		Documentation: "Usage: /ps-schema <database> <branch>",
	},
	{
		Name:          "ps-query",
		Description:   "Runs a SQL query against a specific database and branch",
		Documentation: "Usage: /ps-query <database> <branch> <query>",
	},
}

// SlashCommands returns the advertised slash commands.
func SlashCommands() []SlashCommand {
	out := make([]SlashCommand, len(slashCommands))
	copy(out, slashCommands)
	return out
}

// NewCapabilities builds the announcement payload for ops. Empty name or
// description fall back to the defaults.
func NewCapabilities(name, description string, ops []Operation) Capabilities {
	if name == "" {
		name = DefaultName
	}
	if description == "" {
		description = DefaultDescription
	}
	functions := make([]Descriptor, 0, len(ops))
	for _, op := range ops {
		functions = append(functions, op.Descriptor())
	}
	return Capabilities{
		Functions:     functions,
		SlashCommands: SlashCommands(),
		Name:          name,
		Description:   description,
	}
}
