package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/livelihood-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash     string     `gorm:"column:password_hash;not null"`
	FirstName        string     `gorm:"column:first_name;not null"`
	LastName         string     `gorm:"column:last_name;not null"`
	MiddleName       *string    `gorm:"column:middle_name"`
	Phone            *string    `gorm:"column:phone"`
	Address          *string    `gorm:"column:address"`
	Role             enums.Role `gorm:"column:role;type:text;not null"`
	IsActive         bool       `gorm:"column:is_active;not null"`
	IsVerified       bool       `gorm:"column:is_verified;not null"`
	IsDeleted        bool       `gorm:"column:is_deleted;not null"`
	FederatedSubject *string    `gorm:"column:federated_subject;uniqueIndex"`
	OAuthProviderID  *string    `gorm:"column:oauth_provider_id"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// FullName joins the display name parts.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
