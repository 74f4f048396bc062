// Package tools defines the tool source contract and the call/result types
// the exchange loop dispatches with. A Source contributes a set of tool
// definitions and executes calls against them; implementations exist for
// skill disclosure, collaborator delegation, and MCP servers.
//
// This package depends only on pkg/api and has no external dependencies.
package tools
