package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/ai-chat/backend/internal/config"
	"github.com/zhouzirui/ai-chat/backend/internal/model/user"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUserExists         = errors.New("username already registered")
	ErrInvalidToken       = errors.New("could not validate credentials")
	ErrInactive           = errors.New("inactive user")
	ErrInvalidInput       = errors.New("username and password are required")
)

const (
	TokenType    = "bearer"
	demoUsername = "johndoe"
)

// Token is the response of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterInput carries the fields of a sign-up request.
type RegisterInput struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
}

// Service issues and validates HS256 bearer tokens against a user store.
type Service struct {
	users    user.Store
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService wires the auth service. Tokens carry the username as subject.
func NewService(users user.Store, cfg config.AuthConfig) *Service {
	return &Service{
		users:    users,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL(),
		now:      time.Now,
	}
}

// SeedDemoUser inserts the johndoe account used by local clients.
func (s *Service) SeedDemoUser(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash demo password")
	}
	s.users.Insert(user.User{
		Username:       demoUsername,
		FullName:       "John Doe",
		Email:          "johndoe@example.com",
		HashedPassword: string(hash),
	})
	log.Info().Str("component", "auth").Str("username", demoUsername).Msg("demo user seeded")
	return nil
}

// Register creates a new enabled account.
func (s *Service) Register(_ context.Context, input RegisterInput) (user.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return user.User{}, ErrInvalidInput
	}
	if _, exists := s.users.Find(username); exists {
		return user.User{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, errors.Wrap(err, "hash password")
	}

	account := user.User{
		Username:       username,
		Email:          deref(input.Email),
		FullName:       deref(input.FullName),
		HashedPassword: string(hash),
	}
	if !s.users.Insert(account) {
		return user.User{}, ErrUserExists
	}
	return account, nil
}

// Login checks the password and returns a signed token.
func (s *Service) Login(_ context.Context, username, password string) (Token, error) {
	account, ok := s.users.Find(username)
	if !ok {
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.HashedPassword), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}

	signed, err := s.issue(account.Username)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: TokenType}, nil
}

func (s *Service) issue(subject string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(_ context.Context, token string) (user.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return user.User{}, ErrInvalidToken
	}

	account, ok := s.users.Find(claims.Subject)
	if !ok {
		return user.User{}, ErrInvalidToken
	}
	if account.Disabled {
		return user.User{}, ErrInactive
	}
	return account, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
