package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dwellos/requests-service/internal/models"
	"github.com/dwellos/requests-service/internal/utils"
)

type contextKey string

const (
	ContextKeyPrincipal = contextKey("principal")

	// Cookie name follows the __Host- prefix rule (no Domain attribute allowed)
	AccessTokenCookieName = "__Host-accessToken"
)

// TokenIssuer identifies the identity service that issues access tokens.
const TokenIssuer = "Dwellos"

// AuthMiddleware validates the access token and places the resulting
// Principal {id, role} in the request context. The JWT is read from the
// access-token cookie when present, else from Authorization: Bearer.
// Token issuance lives in the identity service; this middleware only
// verifies.
func AuthMiddleware(pub *rsa.PublicKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := extractAccessToken(r)
			if err != nil {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), nil,
				)
				return
			}

			principal, vErr := validateToken(tokenStr, pub)
			if vErr != nil {
				if errors.Is(vErr, jwt.ErrTokenExpired) {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired", nil, vErr,
					)
					return
				}
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid token", nil, vErr,
				)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the principal set by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(models.Principal)
	return p, ok
}

func validateToken(tokenString string, publicKey *rsa.PublicKey) (models.Principal, error) {
	var principal models.Principal

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return publicKey, nil
	})
	if err != nil {
		return principal, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return principal, errors.New("invalid token claims")
	}

	iss, ok := claims["iss"].(string)
	if !ok {
		return principal, errors.New("missing issuer claim")
	}
	if iss != TokenIssuer {
		return principal, errors.New("invalid token issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return principal, errors.New("missing subject claim")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return principal, errors.New("malformed subject claim")
	}

	roleClaim, ok := claims["role"].(string)
	if !ok {
		return principal, errors.New("missing role claim")
	}

	// The role is carried through as-is: authorization treats anything
	// outside the known set as no-access rather than rejecting here, so
	// tokens minted for future roles fail closed instead of erroring.
	principal = models.Principal{ID: id, Role: models.Role(roleClaim)}
	return principal, nil
}

// helper: read the token from the cookie if present, else from Bearer
func extractAccessToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", errors.New("missing access token")
	}
	return strings.TrimPrefix(h, "Bearer "), nil
}
