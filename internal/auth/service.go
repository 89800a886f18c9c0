// Package auth registers users, checks credentials and issues and verifies
// bearer tokens.
package auth

//go:generate mockgen -source=service.go -destination=mock_user_store_test.go -package=auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperror"
	"storefront/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserStore is the credential store.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
}

type Service struct {
	users  UserStore
	tokens *TokenIssuer
	cost   int
	now    func() time.Time
}

func NewService(users UserStore, tokens *TokenIssuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

func (s *Service) Signup(ctx context.Context, name, email, password string) (string, *models.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || strings.TrimSpace(password) == "" {
		return "", nil, apperror.New(apperror.BadRequest, "name, email and password are required")
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		log.Println("[AUTH] [ERROR] signup email exists:", email)
		return "", nil, apperror.New(apperror.Conflict, "user already exists")
	case !errors.Is(err, ErrUserNotFound):
		return "", nil, apperror.Wrap(apperror.ServerError, "user lookup failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", nil, apperror.Wrap(apperror.ServerError, "password hash failed", err)
	}

	now := s.now()
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return "", nil, apperror.New(apperror.Conflict, "user already exists")
		}
		return "", nil, apperror.Wrap(apperror.ServerError, "user insert failed", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", nil, apperror.Wrap(apperror.ServerError, "token generation failed", err)
	}

	log.Println("[AUTH] [INFO] user registered:", email)
	return token, user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return "", nil, apperror.New(apperror.BadRequest, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		log.Println("[AUTH] [ERROR] login unknown email")
		return "", nil, apperror.New(apperror.Unauthorized, "invalid credentials")
	}
	if err != nil {
		return "", nil, apperror.Wrap(apperror.ServerError, "user lookup failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Println("[AUTH] [ERROR] login invalid credentials for user")
		return "", nil, apperror.New(apperror.Unauthorized, "invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", nil, apperror.Wrap(apperror.ServerError, "token generation failed", err)
	}

	log.Println("[AUTH] [INFO] user login succeeded:", user.Email)
	return token, user, nil
}

func (s *Service) Me(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperror.New(apperror.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.ServerError, "user lookup failed", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
