package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/zfogg/reelrank/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrPostNotFound = errors.New("post not found")
	ErrInvalidInput = errors.New("invalid input")
)

// UserRepository handles all database operations for users
type UserRepository interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetOrCreateUser returns the user, inserting it first when the username is new.
	// Concurrent callers for the same username converge on one row.
	GetOrCreateUser(ctx context.Context, username string) (*models.User, error)
	UpdatePreferences(ctx context.Context, username string, prefs *models.UserPreferences) (*models.User, error)

	GetTotalUserCount(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidInput
	}

	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidInput
	}

	user := models.User{Username: username}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoNothing: true,
		}).
		Create(&user).Error
	if err != nil {
		return nil, err
	}

	// DoNothing leaves the ID unset when the row already existed.
	return r.GetUserByUsername(ctx, username)
}

func (r *userRepository) UpdatePreferences(ctx context.Context, username string, prefs *models.UserPreferences) (*models.User, error) {
	user, err := r.GetOrCreateUser(ctx, username)
	if err != nil {
		return nil, err
	}

	user.Preferences = prefs
	if err := r.db.WithContext(ctx).Model(user).Select("Preferences").Updates(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetTotalUserCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}
