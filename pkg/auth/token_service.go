package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avionyx/flightd/pkg/models"
)

const (
	// DefaultTokenDuration is the lifetime of tokens minted through login
	// and code redemption unless the code asks for less.
	DefaultTokenDuration = 24 * time.Hour

	// MaxTokenDuration caps the lifetime any single token can be minted
	// with, regardless of what an authorization code allows.
	MaxTokenDuration = 365 * 24 * time.Hour
)

// Config holds the key material and issuer identity of the token service.
type Config struct {
	// PrivateKeyPath points to the PEM-encoded RSA private key (PKCS#1 or
	// PKCS#8) used for signing.
	PrivateKeyPath string `mapstructure:"private_key_path" validate:"required" yaml:"private_key_path"`

	// PublicKeyPath points to the matching PEM-encoded public key. It is
	// also what the public-key endpoint serves to verifiers.
	PublicKeyPath string `mapstructure:"public_key_path" validate:"required" yaml:"public_key_path"`

	// Issuer is the iss claim stamped into and required from every token.
	Issuer string `mapstructure:"issuer" validate:"required" yaml:"issuer"`

	// TokenDuration overrides DefaultTokenDuration when non-zero.
	TokenDuration time.Duration `mapstructure:"token_duration" yaml:"token_duration"`
}

// TokenService signs and validates bearer tokens. Keys are loaded once at
// construction; the service is safe for concurrent use.
type TokenService struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	publicKeyPEM  []byte
	issuer        string
	tokenDuration time.Duration
}

// New loads the key pair from disk and returns a ready token service.
func New(cfg Config) (*TokenService, error) {
	privatePEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	publicPEM, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return NewFromPEM(privatePEM, publicPEM, cfg.Issuer, cfg.TokenDuration)
}

// NewFromPEM builds a token service from in-memory PEM key material.
func NewFromPEM(privatePEM, publicPEM []byte, issuer string, tokenDuration time.Duration) (*TokenService, error) {
	if issuer == "" {
		return nil, errors.New("token issuer must not be empty")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if publicKey.N.Cmp(privateKey.N) != 0 {
		return nil, errors.New("public key does not match private key")
	}

	if tokenDuration <= 0 {
		tokenDuration = DefaultTokenDuration
	}

	return &TokenService{
		privateKey:    privateKey,
		publicKey:     publicKey,
		publicKeyPEM:  publicPEM,
		issuer:        issuer,
		tokenDuration: tokenDuration,
	}, nil
}

// PublicKeyPEM returns the PEM-encoded public key for external verifiers.
func (s *TokenService) PublicKeyPEM() []byte {
	return s.publicKeyPEM
}

// TokenDuration returns the configured default token lifetime.
func (s *TokenService) TokenDuration() time.Duration {
	return s.tokenDuration
}

// IssueToken mints a token for the user. validFor is clamped to
// MaxTokenDuration; zero means the configured default. A non-empty
// resources list scopes the token to those entities.
func (s *TokenService) IssueToken(u *models.User, validFor time.Duration, resources []string) (string, error) {
	if validFor <= 0 {
		validFor = s.tokenDuration
	}
	if validFor > MaxTokenDuration {
		validFor = MaxTokenDuration
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.UniqueName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validFor)),
		},
		UserID:     u.ID,
		UniqueName: u.UniqueName,
		Name:       u.Name,
		Roles:      u.Roles,
		Resources:  resources,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ServerToken mints a token the server uses for itself, for operational
// tooling and internal clients.
func (s *TokenService) ServerToken() (string, error) {
	return s.IssueToken(&models.User{
		ID:         RoleServer,
		Name:       RoleServer,
		UniqueName: RoleServer,
		Roles:      []string{RoleServer},
	}, 0, nil)
}

// Validate parses and verifies a token string. Tokens must be RS256-signed
// by this service's key, carry the expected issuer and an expiry. Expired
// tokens map to models.ErrTokenExpired, everything else to
// models.ErrAuthInvalid.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			return s.publicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrAuthInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, models.ErrAuthInvalid
	}
	return claims, nil
}
