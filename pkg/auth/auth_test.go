package auth

import (
	"context"
	"net/http"
	"testing"
)

// stubAuthenticator votes the same way for every request.
type stubAuthenticator struct {
	vote Result
}

func (s *stubAuthenticator) Authenticate(_ context.Context, _ *http.Request) Result {
	return s.vote
}

func accept(subject string) Authenticator {
	return &stubAuthenticator{vote: Result{Decision: Yes, Identity: &Identity{Subject: subject}}}
}

func reject() Authenticator {
	return &stubAuthenticator{vote: Result{Decision: No, Err: ErrUnauthenticated}}
}

func abstain() Authenticator {
	return &stubAuthenticator{vote: Result{Decision: Abstain}}
}

func TestChainVoting(t *testing.T) {
	tests := []struct {
		name           string
		authenticators []Authenticator
		fallback       Decision
		wantDecision   Decision
		wantSubject    string
	}{
		{
			name:           "first yes wins",
			authenticators: []Authenticator{accept("alice"), reject()},
			fallback:       No,
			wantDecision:   Yes,
			wantSubject:    "alice",
		},
		{
			name:           "first no wins",
			authenticators: []Authenticator{reject(), accept("bob")},
			fallback:       No,
			wantDecision:   No,
		},
		{
			name:           "abstain passes to next",
			authenticators: []Authenticator{abstain(), accept("carol")},
			fallback:       No,
			wantDecision:   Yes,
			wantSubject:    "carol",
		},
		{
			name:           "all abstain with reject fallback",
			authenticators: []Authenticator{abstain(), abstain()},
			fallback:       No,
			wantDecision:   No,
		},
		{
			name:           "all abstain with accept fallback",
			authenticators: []Authenticator{abstain()},
			fallback:       Yes,
			wantDecision:   Yes,
			wantSubject:    "anonymous",
		},
		{
			name:         "empty chain rejects",
			fallback:     No,
			wantDecision: No,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &Chain{Authenticators: tt.authenticators, DefaultDecision: tt.fallback}
			r, _ := http.NewRequest("GET", "/", nil)

			result := chain.Authenticate(context.Background(), r)

			if result.Decision != tt.wantDecision {
				t.Fatalf("Decision = %d, want %d", result.Decision, tt.wantDecision)
			}
			if tt.wantSubject != "" {
				if result.Identity == nil {
					t.Fatal("Identity is nil, want subject " + tt.wantSubject)
				}
				if result.Identity.Subject != tt.wantSubject {
					t.Errorf("Subject = %q, want %q", result.Identity.Subject, tt.wantSubject)
				}
			}
		})
	}
}

func TestTenantID(t *testing.T) {
	var nilIdentity *Identity

	tests := []struct {
		name string
		id   *Identity
		want string
	}{
		{"with tenant", &Identity{Subject: "alice", Metadata: map[string]string{"tenant_id": "org-1"}}, "org-1"},
		{"no metadata", &Identity{Subject: "bob"}, ""},
		{"nil identity", nilIdentity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.TenantID(); got != tt.want {
				t.Errorf("TenantID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	if IdentityFromContext(context.Background()) != nil {
		t.Error("empty context: expected nil identity")
	}

	ctx := SetIdentity(context.Background(), &Identity{Subject: "alice"})
	got := IdentityFromContext(ctx)
	if got == nil || got.Subject != "alice" {
		t.Errorf("IdentityFromContext = %+v, want subject alice", got)
	}
}
