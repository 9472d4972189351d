package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/skillbridge/internal/domain"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

var errMissingToken = errors.New("missing bearer token")

// Claims is the token body minted by adminutil/issue_token.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token and returns the identity it carries.
func ParseToken(secret []byte, raw string) (domain.Identity, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Identity{}, err
	}
	if !tok.Valid || claims.UserID == "" {
		return domain.Identity{}, jwt.ErrTokenInvalidClaims
	}
	role := domain.Role(claims.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleMember
	}
	return domain.Identity{UserID: claims.UserID, Role: role}, nil
}

// TokenFromRequest reads "Authorization: Bearer <token>" and falls back to
// the token query parameter, which browsers need for websocket upgrades.
func TokenFromRequest(c echo.Context) (string, error) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok), nil
		}
	}
	if tok := c.QueryParam("token"); tok != "" {
		return tok, nil
	}
	return "", errMissingToken
}

// JWTMiddleware authenticates the request and stores user_id and role on the
// echo context.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := TokenFromRequest(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token"})
			}
			id, err := ParseToken(key, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxUserID, id.UserID)
			c.Set(ctxRole, string(id.Role))
			return next(c)
		}
	}
}

// Identity returns the authenticated actor set by JWTMiddleware.
func Identity(c echo.Context) (domain.Identity, bool) {
	userID, ok := c.Get(ctxUserID).(string)
	if !ok || userID == "" {
		return domain.Identity{}, false
	}
	role, _ := c.Get(ctxRole).(string)
	return domain.Identity{UserID: userID, Role: domain.Role(role)}, true
}
