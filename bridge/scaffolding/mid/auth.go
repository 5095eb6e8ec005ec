package mid

import (
	"context"
	"net/http"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/errs"
	"github.com/jrazmi/allmyducks/infrastructure/web"
)

// TokenVerifier validates a bearer token and returns the user id it names.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// BearerParser pulls the raw token out of an Authorization header.
type BearerParser func(header string) (string, error)

// Authenticate requires a valid bearer token and stores its user id in the
// context for GetUserID.
func Authenticate(verifier TokenVerifier, parse BearerParser) web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(ctx context.Context, r *http.Request) web.Encoder {
			token, err := parse(r.Header.Get("Authorization"))
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				return errs.Newf(errs.Unauthenticated, "invalid or expired token")
			}

			return next(setUserID(ctx, userID), r)
		}
	}
}
