package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"stockpot/internal/config"
)

// TokenType tells access tokens apart from the refresh tokens that renew them.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrWrongTokenType reports a valid token presented where the other kind is expected.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrMissingTokenID reports a refresh token without a jti, which could never be revoked.
	ErrMissingTokenID = errors.New("refresh token has no id")
)

// Claims identify the signed-in user.
type Claims struct {
	UserID   uint      `json:"uid"`
	Username string    `json:"username"`
	Type     TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is an access token with the refresh token that renews it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service signs and verifies RS256 tokens.
type Service struct {
	signingKey   *rsa.PrivateKey
	verifyingKey *rsa.PublicKey
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// NewService parses the PEM encoded key pair.
func NewService(privateKeyPEM, publicKeyPEM []byte, accessTTL, refreshTTL time.Duration) (*Service, error) {
	if len(privateKeyPEM) == 0 || len(publicKeyPEM) == 0 {
		return nil, errors.New("both rsa keys are required")
	}

	signingKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	verifyingKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}

	return &Service{
		signingKey:   signingKey,
		verifyingKey: verifyingKey,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}, nil
}

// NewServiceFromConfig loads the key files named in cfg.
func NewServiceFromConfig(cfg config.AuthConfig) (*Service, error) {
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	publicKeyPEM, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewService(privateKeyPEM, publicKeyPEM, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

// AccessTTL is the lifetime of access tokens.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL is the lifetime of refresh tokens.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// IssuePair signs a fresh access token and a refresh token with a unique jti.
func (s *Service) IssuePair(userID uint, username string) (TokenPair, error) {
	now := time.Now()

	access, err := s.sign(userID, username, TokenTypeAccess, "", now, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, username, TokenTypeRefresh, uuid.NewString(), now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks the signature, expiry and kind of raw.
func (s *Service) Verify(raw string, want TokenType) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("empty token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.verifyingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == 0 {
		return nil, errors.New("token has no user")
	}
	if want == TokenTypeRefresh && claims.ID == "" {
		return nil, ErrMissingTokenID
	}
	return claims, nil
}

func (s *Service) sign(userID uint, username string, typ TokenType, jti string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}
