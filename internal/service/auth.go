package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"coreshare-backend/internal/domain"
	"coreshare-backend/internal/logger"
	"coreshare-backend/internal/repository"
	"coreshare-backend/internal/security"
)

const minPasswordLength = 8

var errInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)

type authService struct {
	userRepo repository.UserRepository
	tokens   security.TokenManager
}

func NewAuthService(userRepo repository.UserRepository, tokens security.TokenManager) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	logger.EnterMethod("authService.Register", "username", in.Username)

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	var v validator
	v.check(in.Username != "", "username", "is required")
	v.check(in.Name != "", "name", "is required")
	_, mailErr := mail.ParseAddress(in.Email)
	v.check(in.Email != "" && mailErr == nil, "email", "must be a valid email address")
	v.check(len(in.Password) >= minPasswordLength, "password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	v.check(in.Role.Valid(), "role", "must be one of renter, rentee, both")
	if err := v.err(); err != nil {
		return nil, "", err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}
	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Role:         in.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", fmt.Errorf("%w: username already taken", ErrConflict)
		}
		logger.ExitMethodWithError("authService.Register", err, "username", in.Username)
		return nil, "", err
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, "", err
	}
	logger.Info("User registered", "userID", user.ID, "role", user.Role)
	logger.ExitMethod("authService.Register", "userID", user.ID)
	return user, token, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", errInvalidCredentials
		}
		return nil, "", err
	}
	if !security.CheckPassword(user.PasswordHash, password) {
		logger.Warn("Login failed", "userID", user.ID)
		return nil, "", errInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
