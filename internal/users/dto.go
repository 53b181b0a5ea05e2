package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	"github.com/angelmondragon/livelihood-backend/pkg/pagination"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	MiddleName  *string    `json:"middle_name,omitempty"`
	FullName    string     `json:"full_name"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Role        enums.Role `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	MiddleName       *string
	Phone            *string
	Address          *string
	Role             enums.Role
	IsVerified       bool
	FederatedSubject *string
	IsActive         *bool
}

// UpdateProfileInput carries optional profile changes; nil means "not provided".
type UpdateProfileInput struct {
	Email      *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FirstName  *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=100"`
	MiddleName *string `json:"middle_name,omitempty" validate:"omitempty,max=100"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address    *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// CreateByAdminInput provisions an account on someone's behalf. An empty
// password generates a temporary one that is returned once.
type CreateByAdminInput struct {
	Email     string     `json:"email" validate:"required,email,max=255"`
	Password  string     `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	FirstName string     `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string     `json:"last_name" validate:"required,min=1,max=100"`
	Phone     *string    `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role      enums.Role `json:"role" validate:"required"`
}

// CreatedUser is returned by CreateByAdmin.
type CreatedUser struct {
	User              *UserDTO `json:"user"`
	TemporaryPassword string   `json:"temporary_password,omitempty"`
}

// ListFilter narrows the admin user listing.
type ListFilter struct {
	Search string
	Role   *enums.Role
	Active *bool
	pagination.Params
}

// Page is one page of users.
type Page struct {
	Items      []UserDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		MiddleName:  u.MiddleName,
		FullName:    u.FullName(),
		Phone:       u.Phone,
		Address:     u.Address,
		Role:        u.Role,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}
	role := c.Role
	if role == "" {
		role = enums.RoleBeneficiary
	}

	return &models.User{
		Email:            NormalizeEmail(c.Email),
		PasswordHash:     c.PasswordHash,
		FirstName:        strings.TrimSpace(c.FirstName),
		LastName:         strings.TrimSpace(c.LastName),
		MiddleName:       c.MiddleName,
		Phone:            c.Phone,
		Address:          c.Address,
		Role:             role,
		IsActive:         isActive,
		IsVerified:       c.IsVerified,
		FederatedSubject: c.FederatedSubject,
	}
}

// NormalizeEmail is the stored form of every email: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// roleSnapshot is the old/new payload of role audit rows.
func roleSnapshot(role enums.Role) map[string]any {
	return map[string]any{"role": string(role)}
}

func activeSnapshot(active bool) map[string]any {
	return map[string]any{"is_active": active}
}
