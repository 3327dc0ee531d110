package store

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/judyrop/tequilas-restaurant/models"
)

type UserRepo struct {
	db *gorm.DB
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.WithContext(ctx).Omit("Orders").Create(user).Error
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Roles").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Roles").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) ExistsByUserName(ctx context.Context, userName string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(user_name) = ?", strings.ToLower(userName)).Count(&n).Error
	return n > 0, err
}

// EnsureRole returns the role with the name, creating it when missing.
func (r *UserRepo) EnsureRole(ctx context.Context, name string) (*models.Role, error) {
	role := models.Role{Name: name}
	if err := r.db.WithContext(ctx).Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// AddRole grants the role to the user; granting an existing role is a no-op.
func (r *UserRepo) AddRole(ctx context.Context, user *models.User, role *models.Role) error {
	row := map[string]any{"user_id": user.ID, "role_id": role.ID}
	return r.db.WithContext(ctx).Table("user_roles").Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}
