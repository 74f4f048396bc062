package skills

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

// ToolName is the name of the disclosure tool.
const ToolName = "read_skill"

// toolSchema is the fixed input schema: one required string property.
var toolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"skill": {
			"type": "string",
			"description": "Name of the skill to load"
		}
	},
	"required": ["skill"]
}`)

// Source exposes the read_skill tool over a catalog. It contributes no
// tool at all when the catalog has no enabled bundles.
type Source struct {
	catalog *Catalog
}

// Ensure Source implements tools.Source at compile time.
var _ tools.Source = (*Source)(nil)

// NewSource creates a tool source for the given catalog.
func NewSource(catalog *Catalog) *Source {
	return &Source{catalog: catalog}
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return "skills"
}

// Tools returns the read_skill definition, or nothing when no bundle is
// enabled.
func (s *Source) Tools() []api.ToolDefinition {
	if len(s.catalog.Enabled()) == 0 {
		return nil
	}
	return []api.ToolDefinition{
		{
			Name:        ToolName,
			Description: "Load the full instructions of an available skill by name.",
			InputSchema: toolSchema,
		},
	}
}

// CanExecute reports whether this source handles the named tool.
func (s *Source) CanExecute(name string) bool {
	return name == ToolName && len(s.catalog.Enabled()) > 0
}

// Execute looks up the requested bundle. An unknown or missing name yields
// a corrective error result enumerating the enabled bundles so the model
// can retry; it never fails the exchange.
func (s *Source) Execute(ctx context.Context, call tools.Call) (*tools.Result, error) {
	var args struct {
		Skill string `json:"skill"`
	}
	// Invalid input degrades to an empty name and the corrective path.
	if len(call.Input) > 0 {
		_ = json.Unmarshal(call.Input, &args)
	}

	bundle, ok := s.catalog.Lookup(args.Skill)
	if !ok {
		return &tools.Result{
			CallID:  call.ID,
			Content: unknownSkillMessage(args.Skill, s.catalog.EnabledNames()),
			IsError: true,
		}, nil
	}

	return &tools.Result{
		CallID:  call.ID,
		Content: bundle.Content,
	}, nil
}

// Close releases source resources; the catalog holds none.
func (s *Source) Close() error {
	return nil
}

// unknownSkillMessage builds the corrective error text for a failed lookup.
func unknownSkillMessage(requested string, enabled []string) string {
	var sb strings.Builder
	if requested == "" {
		sb.WriteString("no skill name given.")
	} else {
		sb.WriteString("unknown skill ")
		sb.WriteString(requested)
		sb.WriteString(".")
	}
	if len(enabled) == 0 {
		sb.WriteString(" No skills are currently enabled.")
		return sb.String()
	}
	sb.WriteString(" Available skills: ")
	sb.WriteString(strings.Join(enabled, ", "))
	return sb.String()
}
