package subagent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/session"
)

// ToolPrefix prepends every delegation tool name.
const ToolPrefix = "subagent_"

// toolSchema is the fixed delegation input schema: one required string
// property.
var toolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"message": {
			"type": "string",
			"description": "The task or question to delegate"
		}
	},
	"required": ["message"]
}`)

// collaborator binds a client to its discovery state.
type collaborator struct {
	cfg    Config
	client *Client

	mu         sync.RWMutex
	descriptor *Descriptor
	tool       api.ToolDefinition
}

// discovered reports whether the agent card was fetched successfully.
func (c *collaborator) discovered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.descriptor != nil
}

// displayName returns the card's name, falling back to the configured id.
func (c *collaborator) displayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.descriptor != nil && c.descriptor.Name != "" {
		return c.descriptor.Name
	}
	return c.cfg.ID
}

// Pool holds the configured collaborators and their shared session store.
type Pool struct {
	collaborators []*collaborator
	sessions      *session.Store
}

// NewPool creates a Pool from the given configurations. Returns an error
// if any configuration is invalid.
func NewPool(cfgs []Config, sessions *session.Store) (*Pool, error) {
	p := &Pool{sessions: sessions}
	for _, cfg := range cfgs {
		client, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		p.collaborators = append(p.collaborators, &collaborator{
			cfg:    cfg,
			client: client,
		})
	}
	return p, nil
}

// Discover fetches every collaborator's agent card concurrently. A failed
// discovery is logged and the collaborator's tool is omitted; it never
// affects the other collaborators.
func (p *Pool) Discover(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range p.collaborators {
		wg.Add(1)
		go func(c *collaborator) {
			defer wg.Done()

			d, err := c.client.Discover(ctx)
			if err != nil {
				slog.Warn("collaborator discovery failed, omitting its tool",
					"collaborator", c.cfg.ID,
					"error", err.Error(),
				)
				return
			}

			c.mu.Lock()
			c.descriptor = d
			c.tool = buildTool(c.cfg.ID, d)
			c.mu.Unlock()

			slog.Info("discovered collaborator",
				"collaborator", c.cfg.ID,
				"name", d.Name,
				"capabilities", len(d.Capabilities),
			)
		}(c)
	}
	wg.Wait()
}

// Source returns a per-exchange tool source bound to the conversation, so
// continuation tokens resolve against the right session state.
func (p *Pool) Source(conversationID string) *Source {
	return &Source{
		conversationID: conversationID,
		pool:           p,
	}
}

// Close releases all collaborator clients.
func (p *Pool) Close() error {
	for _, c := range p.collaborators {
		c.client.Close()
	}
	return nil
}

// byToolName finds the discovered collaborator owning the tool name.
func (p *Pool) byToolName(name string) *collaborator {
	for _, c := range p.collaborators {
		if !c.discovered() {
			continue
		}
		c.mu.RLock()
		owns := c.tool.Name == name
		c.mu.RUnlock()
		if owns {
			return c
		}
	}
	return nil
}

// buildTool renders a collaborator's delegation tool from its card. The
// description folds in everything the card discloses so the model can
// route tasks without extra lookups.
func buildTool(id string, d *Descriptor) api.ToolDefinition {
	name := d.Name
	if name == "" {
		name = id
	}

	var sb strings.Builder
	sb.WriteString("Delegate a task to the ")
	sb.WriteString(name)
	sb.WriteString(" agent.")
	if d.Description != "" {
		sb.WriteString(" ")
		sb.WriteString(d.Description)
	}
	if len(d.Capabilities) > 0 {
		parts := make([]string, 0, len(d.Capabilities))
		for _, capability := range d.Capabilities {
			if capability.Description != "" {
				parts = append(parts, capability.Name+" ("+capability.Description+")")
			} else {
				parts = append(parts, capability.Name)
			}
		}
		sb.WriteString(" Capabilities: ")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(".")
	}

	return api.ToolDefinition{
		Name:        ToolPrefix + id,
		Description: sb.String(),
		InputSchema: toolSchema,
	}
}
