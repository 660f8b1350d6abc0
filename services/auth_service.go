package services

import (
	stderrors "errors"
	"fmt"
	"time"

	"chat-server/auth"
	"chat-server/domain"
	"chat-server/errors"
	"chat-server/repositories"
)

type IAuthService interface {
	Register(name, handle, password string) (Token, domain.User, error)
	Login(handle, password string) (Token, domain.User, error)
}

type Token string

type AuthService struct {
	users         repositories.IUserRepository
	tokenDuration time.Duration
}

func NewAuthService(users repositories.IUserRepository, tokenDuration time.Duration) *AuthService {
	return &AuthService{users: users, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(name, handle, password string) (Token, domain.User, error) {
	req := auth.RegisterRequest{Name: name, Handle: handle, Password: password}

	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(req); err != nil {
		return "", domain.User{}, err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	record, err := s.users.Create(name, handle, hashedPassword)
	if stderrors.Is(err, errors.ErrUserAlreadyExists) {
		// A taken handle is client-correctable, same shape as any other
		// field failure.
		return "", domain.User{}, errors.NewValidation("handle", "this handle is already taken")
	}
	if err != nil {
		return "", domain.User{}, err
	}

	token, err := auth.GenerateToken(record.ID, s.tokenDuration)
	if err != nil {
		return "", domain.User{}, errors.ErrTokenGeneration
	}
	return Token(token), toUser(record), nil
}

func (s *AuthService) Login(handle, password string) (Token, domain.User, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Handle: handle, Password: password}); err != nil {
		return "", domain.User{}, err
	}

	user, err := s.users.GetByHandle(handle)
	if err != nil {
		// Generic error to prevent handle enumeration.
		return "", domain.User{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", domain.User{}, errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, s.tokenDuration)
	if err != nil {
		return "", domain.User{}, errors.ErrTokenGeneration
	}
	return Token(token), toUser(user), nil
}
