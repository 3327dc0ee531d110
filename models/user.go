package models

import (
	"sort"

	"gorm.io/gorm"
)

const RoleAdmin = "Admin"

type Role struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:64;not null;uniqueIndex"`
}

type User struct {
	gorm.Model
	UserName string `gorm:"size:256;not null;uniqueIndex"`
	// Email is stored lower-cased.
	Email string `gorm:"size:256;not null;uniqueIndex"`
	// PasswordHash is empty for users that only sign in through an external identity provider.
	PasswordHash string `gorm:"size:255"`
	Roles        []Role `gorm:"many2many:user_roles;"`
	Orders       []Order
}

// RoleNames returns the user's role names in sorted order.
func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}
