package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/apperrors"
	"civicreport-be/models"
	"civicreport-be/repositories"
	"civicreport-be/utils"
)

// Actor is the authenticated caller as resolved by the auth middleware.
type Actor struct {
	ID   primitive.ObjectID
	Role models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

type AuthService struct {
	users  repositories.UserRepository
	tokens *utils.TokenService
}

func NewAuthService(users repositories.UserRepository, tokens *utils.TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates a user with the member role and returns it together
// with a fresh token. A previously used email yields ErrConflict.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, "", apperrors.ErrConflict
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", err
	}

	now := time.Now()
	user := &models.User{
		ID:        primitive.NewObjectID(),
		Username:  username,
		Email:     email,
		Password:  password,
		Role:      models.RoleMember,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.HashPassword(); err != nil {
		return nil, "", err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID.Hex(), string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !user.ComparePassword(password) {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID.Hex(), string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Me resolves the authenticated user's record.
func (s *AuthService) Me(ctx context.Context, actor Actor) (*models.User, error) {
	return s.users.FindByID(ctx, actor.ID)
}
