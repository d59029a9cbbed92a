package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// User represents a marketplace participant or staff member.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Email     string         `gorm:"type:text;not null;uniqueIndex"`
	Phone     *string        `gorm:"column:phone"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null;default:user"`
	IsActive  bool           `gorm:"column:is_active;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// Contact returns the preferred contact detail for the user.
func (u User) Contact() string {
	if u.Phone != nil && *u.Phone != "" {
		return *u.Phone
	}
	return u.Email
}
