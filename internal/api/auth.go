package api

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"marketplace-service/internal/entity"
)

const principalKey = "principal"

// JwtCustomClaims is what the identity service puts in its tokens.
type JwtCustomClaims struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	ProfileID int64  `json:"profile_id"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Principal turns the claims into the caller identity. Tokens without a
// session id share one cart per user.
func (c *JwtCustomClaims) Principal() (entity.Principal, error) {
	role := entity.Role(c.Role)
	if role != entity.RoleClient && role != entity.RoleSeller {
		return entity.Principal{}, fmt.Errorf("unknown role %q", c.Role)
	}
	if c.UserID == 0 || c.ProfileID == 0 {
		return entity.Principal{}, fmt.Errorf("token has no user or profile")
	}
	sid := c.SessionID
	if sid == "" {
		sid = fmt.Sprintf("user-%d", c.UserID)
	}
	return entity.Principal{UserID: c.UserID, Role: role, ProfileID: c.ProfileID, SessionID: sid}, nil
}

// JWT validates the bearer token and stores the caller's Principal on the
// context.
func JWT(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JwtCustomClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*JwtCustomClaims)
			if !ok {
				return
			}
			if p, err := claims.Principal(); err == nil {
				c.Set(principalKey, p)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(401, map[string]string{"error": "Unauthorized"})
		},
	})
}

func principalFrom(c echo.Context) (entity.Principal, bool) {
	p, ok := c.Get(principalKey).(entity.Principal)
	return p, ok
}

// requirePrincipal rejects requests whose token carried unusable claims.
func requirePrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := principalFrom(c); !ok {
			return c.JSON(401, map[string]string{"error": "Unauthorized"})
		}
		return next(c)
	}
}
