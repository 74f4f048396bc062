// Package skills implements progressive capability disclosure. A catalog
// of bundles contributes two things to an exchange: a system-preamble
// section listing the enabled bundles by name and description, and a
// read_skill tool that loads a bundle's full instructions on demand. Full
// content never enters the conversation until the model asks for it.
//
// When no bundle is enabled the catalog contributes nothing: no preamble
// section and no tool.
package skills

import (
	"log/slog"
	"strings"
)

// Bundle is one capability bundle: lightweight metadata that is always
// disclosed, and full content that is disclosed only via read_skill.
type Bundle struct {
	// Name identifies the bundle; read_skill looks it up by exact match.
	Name string

	// Description is a one-line summary used in the preamble.
	Description string

	// Content is the full instruction text returned by read_skill.
	Content string

	// Enabled gates the bundle's participation in exchanges.
	Enabled bool
}

// Catalog holds the configured bundles in a stable order.
type Catalog struct {
	bundles []Bundle
}

// NewCatalog creates a catalog from the given bundles. Duplicate names
// are resolved first-come, first-served with a warning.
func NewCatalog(bundles []Bundle) *Catalog {
	c := &Catalog{}
	seen := make(map[string]bool, len(bundles))
	for _, b := range bundles {
		if seen[b.Name] {
			slog.Warn("duplicate skill bundle name, keeping first", "bundle", b.Name)
			continue
		}
		seen[b.Name] = true
		c.bundles = append(c.bundles, b)
	}
	return c
}

// Enabled returns the enabled bundles in catalog order.
func (c *Catalog) Enabled() []Bundle {
	var out []Bundle
	for _, b := range c.bundles {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}

// EnabledNames returns the names of the enabled bundles in catalog order.
func (c *Catalog) EnabledNames() []string {
	var out []string
	for _, b := range c.bundles {
		if b.Enabled {
			out = append(out, b.Name)
		}
	}
	return out
}

// Lookup finds an enabled bundle by exact name.
func (c *Catalog) Lookup(name string) (Bundle, bool) {
	for _, b := range c.bundles {
		if b.Enabled && b.Name == name {
			return b, true
		}
	}
	return Bundle{}, false
}

// Preamble renders the system-prompt section for the enabled bundles.
// Only names and descriptions appear; full content stays undisclosed.
// Returns the empty string when no bundle is enabled.
func (c *Catalog) Preamble() string {
	enabled := c.Enabled()
	if len(enabled) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You have access to the following skills. Before using one, call the read_skill tool with its name to load the full instructions.\n")
	for _, b := range enabled {
		sb.WriteString("\n- ")
		sb.WriteString(b.Name)
		if b.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(b.Description)
		}
	}
	return sb.String()
}
