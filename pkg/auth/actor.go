package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
)

// Actor is the authenticated caller passed explicitly into every operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// Validate ensures the actor carries an identity and a known role.
func (a Actor) Validate() error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("actor id is required")
	}
	if !a.Role.IsValid() {
		return fmt.Errorf("invalid actor role %q", a.Role)
	}
	return nil
}

// RequireAdmin validates the actor and rejects non-admin roles.
func (a Actor) RequireAdmin() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return fmt.Errorf("actor %s is not an admin", a.ID)
	}
	return nil
}

// AuthorizeAdmin is RequireAdmin expressed as API errors: a missing identity
// is UNAUTHORIZED, a non-admin role is FORBIDDEN.
func AuthorizeAdmin(a Actor) error {
	if err := a.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "authenticated actor required")
	}
	if !a.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}
