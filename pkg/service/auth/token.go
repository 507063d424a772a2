package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
)

const defaultTokenTTL = 24 * time.Hour

// TokenService signs and verifies API bearer tokens with HS256
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option is a functional option for TokenService
type Option func(*TokenService)

// WithTTL overrides the token lifetime
func WithTTL(ttl time.Duration) Option {
	return func(s *TokenService) {
		s.ttl = ttl
	}
}

// WithClock injects a time source for tests
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

// New creates a TokenService. The secret must not be empty.
func New(secret []byte, opts ...Option) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, goerr.New("token secret must not be empty",
			goerr.T(apperr.ErrTagInvalidInput))
	}

	s := &TokenService{
		secret: secret,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign issues a token for the given subject
func (s *TokenService) Sign(subject string) (string, error) {
	if subject == "" {
		return "", goerr.New("token subject must not be empty",
			goerr.T(apperr.ErrTagInvalidInput))
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// Verify parses a token and returns its subject
func (s *TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, goerr.New("unexpected signing method", goerr.V("method", token.Header["alg"]))
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse token",
			goerr.T(apperr.ErrTagUnauthorized))
	}

	if !token.Valid {
		return "", goerr.New("invalid token", goerr.T(apperr.ErrTagUnauthorized))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", goerr.New("failed to parse token claims", goerr.T(apperr.ErrTagUnauthorized))
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", goerr.New("subject not found in token claims", goerr.T(apperr.ErrTagUnauthorized))
	}

	return subject, nil
}
