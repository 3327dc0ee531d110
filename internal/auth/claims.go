package auth

import (
	"sort"
	"time"

	"github.com/judyrop/tequilas-restaurant/models"
)

// RoleSet is a set of role names.
type RoleSet map[string]struct{}

func NewRoleSet(names ...string) RoleSet {
	set := make(RoleSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s RoleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// List returns the role names sorted.
func (s RoleSet) List() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Claims is the verified identity carried by a bearer token.
type Claims struct {
	UserID    uint
	Email     string
	UserName  string
	Roles     RoleSet
	ExpiresAt time.Time
}

func ClaimsForUser(u *models.User) *Claims {
	return &Claims{
		UserID:   u.ID,
		Email:    u.Email,
		UserName: u.UserName,
		Roles:    NewRoleSet(u.RoleNames()...),
	}
}

func IsAuthenticated(c *Claims) bool {
	return c != nil && c.UserID != 0
}

func HasRole(c *Claims, role string) bool {
	return IsAuthenticated(c) && c.Roles.Has(role)
}

func IsAdmin(c *Claims) bool {
	return HasRole(c, models.RoleAdmin)
}

// CanViewOrder reports whether c may see an order owned by ownerID.
func CanViewOrder(c *Claims, ownerID uint) bool {
	return IsAdmin(c) || (IsAuthenticated(c) && c.UserID == ownerID)
}
