package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the JWT body. The jti doubles as the Redis session id.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims pass.
func (c *AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token missing user id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token carries invalid role %q", c.Role)
	}
	return nil
}

func (c *AccessTokenClaims) Actor() Actor {
	return Actor{ID: c.UserID, Role: c.Role}
}
