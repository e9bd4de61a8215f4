package middlewares

import (
	"net/http"
	"slices"
	"strings"

	"github.com/clarencepanto/stockflow-api-backend/internal/auth"
	"github.com/clarencepanto/stockflow-api-backend/internal/handlerutils"
	"github.com/clarencepanto/stockflow-api-backend/internal/servererrors"
)

// AuthWithContext resolves the caller from the access token and stores the
// identity in the request context. With roles given, only those may pass.
func (mw *middleware) AuthWithContext(h handlerutils.APIHandler, roles ...auth.Role) handlerutils.APIHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		accessToken := accessTokenFromRequest(r)
		if accessToken == "" {
			return servererrors.New(
				http.StatusUnauthorized,
				servererrors.ErrNoAccessToken.Error(),
				nil,
			)
		}

		isValid, identity, err := mw.jwtManager.ValidateAccessToken(accessToken)
		if err != nil {
			return err
		}

		if !isValid {
			return servererrors.New(
				http.StatusUnauthorized,
				servererrors.ErrUnauthorized.Error(),
				nil,
			)
		}

		if len(roles) > 0 && !slices.Contains(roles, identity.Role) {
			return servererrors.New(
				http.StatusForbidden,
				servererrors.ErrUnauthorizedAccess.Error(),
				nil,
			)
		}

		r = r.WithContext(auth.WithIdentity(r.Context(), *identity))

		return h(w, r)
	}
}

func accessTokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie("accessToken"); err == nil {
		return cookie.Value
	}

	return ""
}

// IdentityFromRequest returns the identity AuthWithContext stored; handlers
// behind that middleware can rely on it being present.
func IdentityFromRequest(r *http.Request) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, servererrors.New(
			http.StatusUnauthorized,
			servererrors.ErrUnauthorized.Error(),
			nil,
		)
	}

	return identity, nil
}
