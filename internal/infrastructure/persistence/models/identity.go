package models

import (
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// UserModel is the persistence model for the User domain entity.
type UserModel struct {
	BaseModel
	Email        *string    `gorm:"type:varchar(255);uniqueIndex"`
	Name         string     `gorm:"type:varchar(255);not null"`
	PasswordHash *string    `gorm:"type:varchar(255)"`
	AvatarURL    *string    `gorm:"type:varchar(1000)"`
	IsAdmin      bool       `gorm:"not null;default:false"`
	IsSuperAdmin bool       `gorm:"not null;default:false"`
	IsApproved   bool       `gorm:"not null"` // no default: Create would skip false
	AdminID      *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User entity.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		BaseEntity:   m.BaseModel.ToDomain(),
		Email:        derefString(m.Email),
		Name:         m.Name,
		PasswordHash: derefString(m.PasswordHash),
		AvatarURL:    derefString(m.AvatarURL),
		IsAdmin:      m.IsAdmin,
		IsSuperAdmin: m.IsSuperAdmin,
		IsApproved:   m.IsApproved,
		AdminID:      m.AdminID,
	}
}

// FromDomain populates the persistence model from a domain User entity.
func (m *UserModel) FromDomain(u *identity.User) {
	m.FromDomainBaseEntity(u.BaseEntity)
	m.Email = nullableString(u.Email)
	m.Name = u.Name
	m.PasswordHash = nullableString(u.PasswordHash)
	m.AvatarURL = nullableString(u.AvatarURL)
	m.IsAdmin = u.IsAdmin
	m.IsSuperAdmin = u.IsSuperAdmin
	m.IsApproved = u.IsApproved
	m.AdminID = u.AdminID
}

// UserModelFromDomain creates a new persistence model from a domain User entity.
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{}
	m.FromDomain(u)
	return m
}
