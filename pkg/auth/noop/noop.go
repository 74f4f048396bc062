// Package noop provides a pass-through authenticator that accepts all
// requests. Used for development and unauthenticated deployments.
package noop

import (
	"context"
	"net/http"

	"github.com/dirigent-dev/dirigent/pkg/auth"
)

// Authenticator always returns Yes with a default anonymous identity.
type Authenticator struct{}

var _ auth.Authenticator = (*Authenticator)(nil)

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     "anonymous",
			ServiceTier: "default",
		},
	}
}
