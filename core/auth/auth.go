/*
Package auth turns passwords into verifiable credentials and user identities into
bearer tokens and back.

Tokens are HS256 signed JWTs. The signing secret is part of Config, which is
created once at startup and injected into New; it is never read from anywhere
else and never changes during the lifetime of a Service.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/plantparenthood/core"
)

// DefaultTokenLifetime is the lifetime of a token if Config does not say otherwise
const DefaultTokenLifetime = 7 * 24 * time.Hour

// Errors returned by token resolution
var (
	ErrMissing          = core.NewError(core.CategoryAuth, "auth_missing", "missing bearer token")
	ErrMalformed        = core.NewError(core.CategoryAuth, "auth_malformed", "malformed bearer token")
	ErrExpired          = core.NewError(core.CategoryAuth, "auth_expired", "token has expired")
	ErrInvalidSignature = core.NewError(core.CategoryAuth, "auth_invalid_signature", "token signature is invalid")
	ErrUnknownUser      = core.NewError(core.CategoryAuth, "auth_unknown_user", "token refers to an unknown user")
)

// Config is the process wide auth configuration
type Config struct {
	// Secret is the HMAC key for signing tokens. This is mandatory.
	Secret []byte
	// TokenLifetime defaults to DefaultTokenLifetime
	TokenLifetime time.Duration
	// Issuer is written to and required in every token. Optional.
	Issuer string
}

// UserLookup answers whether a user still exists
type UserLookup interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service issues and resolves tokens
type Service struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	users    UserLookup

	// Now is the clock used for issuing and checking tokens
	Now func() time.Time
}

// Claims are the claims of a planner token
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// New creates an auth service. users may be nil, then ResolveToken does not check
// for deleted users.
func New(cfg Config, users UserLookup) *Service {
	if len(cfg.Secret) == 0 {
		panic("auth secret is missing")
	}
	lifetime := cfg.TokenLifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &Service{
		secret:   append([]byte{}, cfg.Secret...),
		lifetime: lifetime,
		issuer:   cfg.Issuer,
		users:    users,
		Now:      time.Now,
	}
}

// HashPassword returns a salted bcrypt hash of the password. Two calls with the
// same password yield different hashes.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", core.Validation("cannot hash password: %v", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. A wrong password or a
// broken hash yields false, never an error.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken returns a signed token for the user which expires after the configured lifetime
func (s *Service) IssueToken(userID uuid.UUID) (string, error) {
	now := s.Now()
	claims := Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", core.Internal(fmt.Errorf("cannot sign token: %w", err))
	}
	return token, nil
}

// ExpiresAt returns the expiry instant of a token issued now
func (s *Service) ExpiresAt() time.Time {
	return s.Now().Add(s.lifetime)
}

// ParseToken verifies signature and expiry of the token and returns the user id it
// was issued for. It does not check whether that user still exists.
func (s *Service) ParseToken(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrMissing
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(), // expiry is checked below against our own clock
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, classify(err)
	}

	if claims.ExpiresAt == nil || claims.UserID == "" {
		return uuid.Nil, ErrMalformed
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return uuid.Nil, ErrInvalidSignature.WithMessage("token was issued by '%s'", claims.Issuer)
	}
	if !s.Now().Before(claims.ExpiresAt.Time) {
		return uuid.Nil, ErrExpired
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	return userID, nil
}

// ResolveToken is ParseToken plus a check that the user still exists
func (s *Service) ResolveToken(ctx context.Context, tokenString string) (uuid.UUID, error) {
	userID, err := s.ParseToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	if s.users == nil {
		return userID, nil
	}
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return uuid.Nil, core.Internal(err)
	}
	if !exists {
		return uuid.Nil, ErrUnknownUser
	}
	return userID, nil
}

// classify maps jwt parse errors to our error kinds. A bad signature wins over
// everything else, so tampered tokens are never reported as merely expired.
func classify(err error) error {
	var ve *jwt.ValidationError
	if !errors.As(err, &ve) {
		return ErrMalformed
	}
	switch {
	case ve.Errors&(jwt.ValidationErrorSignatureInvalid|jwt.ValidationErrorUnverifiable) != 0:
		return ErrInvalidSignature
	case ve.Errors&jwt.ValidationErrorExpired != 0:
		return ErrExpired
	default:
		return ErrMalformed
	}
}
