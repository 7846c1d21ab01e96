package planner

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/model"
)

// CreateUser registers a new user. The password is stored as salted hash only.
//
// Fails with core.ErrUsernameTaken or core.ErrEmailTaken if the database rejects
// the insert because of a duplicate.
func (p *Planner) CreateUser(ctx context.Context, username, email, password string) (*model.User, error) {
	username, err := text("username", username, 30, true)
	if err != nil {
		return nil, err
	}
	email, err = text("email", strings.ToLower(email), 120, true)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(email, "@") {
		return nil, core.Validation("email is not a valid address")
	}
	if password == "" {
		return nil, core.Validation("password is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	err = p.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return nil, p.userConflict(ctx, username, email)
		}
		return nil, core.Internal(err)
	}
	return user, nil
}

// userConflict finds out which unique column a failed insert collided with
func (p *Planner) userConflict(ctx context.Context, username, email string) error {
	var count int64
	if err := p.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return core.Internal(err)
	}
	if count > 0 {
		return core.ErrUsernameTaken.WithMessage("username '%s' is already taken", username)
	}
	if err := p.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return core.Internal(err)
	}
	if count > 0 {
		return core.ErrEmailTaken.WithMessage("email '%s' is already registered", email)
	}
	return core.ErrConflict
}

// Authenticate returns the user with the given username if the password matches.
// Unknown users and wrong passwords both yield core.ErrInvalidCredentials.
func (p *Planner) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	var user model.User
	err := p.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			auth.VerifyPassword(password, dummyHash)
			return nil, core.ErrInvalidCredentials
		}
		return nil, core.Internal(err)
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, core.ErrInvalidCredentials
	}
	return &user, nil
}

// bcrypt hash of a random string, used to keep login timing independent of user existence
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z0nXCBQ8hCDlxF1wV8F/7KPe"

// UserExists returns true if a user with this id exists
func (p *Planner) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, core.Internal(err)
	}
	return count > 0, nil
}

// GetUser returns a user or core.ErrUserNotFound
func (p *Planner) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := p.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, core.ErrUserNotFound)
	}
	return &user, nil
}

// ListUsers returns all users ordered by username
func (p *Planner) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := p.db.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, core.Internal(err)
	}
	return users, nil
}
