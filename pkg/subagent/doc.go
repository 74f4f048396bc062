// Package subagent implements the collaborator client side of delegation.
// Collaborators are independent agent services configured by base URL; each
// one is discovered via its agent card and, when discovery succeeds,
// surfaces as a subagent_<id> tool the model can call to hand a task over.
//
// Discovery failures are contained: a collaborator that cannot be reached
// is logged and omitted, it never fails an exchange and never blocks the
// other collaborators' tools. Delegations carry a continuation token per
// (conversation, collaborator) so a collaborator can resume its own
// session across turns; tokens live in a session.Store.
package subagent
