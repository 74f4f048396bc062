// Package storage provides utilities shared across transcript store
// implementations, including sentinel errors, tenant context helpers,
// and transcript trimming.
//
// Store adapters (memory, postgres) implement the
// transport.ConversationStore interface defined in
// pkg/transport/handler.go. This package contains only shared types and
// helpers, not the interface itself.
package storage
