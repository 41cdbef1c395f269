package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"identity-server/internal/model"
)

const refreshTokenBytes = 32

// TokenConfig carries the signing material for access tokens. It is an
// explicit struct so the service never reads ambient global state.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
}

type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
}

type accessClaims struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"name"`
	Roles       []string `json:"roles"`
	jwt.RegisteredClaims
}

// NewTokenService fails on an empty signing key: a blank JWT_SECRET must
// never be silently accepted as valid signing material.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(strings.TrimSpace(string(cfg.SigningKey))) == 0 {
		return nil, fmt.Errorf("token service: signing key is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("token service: issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("token service: audience is required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("token service: access TTL must be positive")
	}

	return &TokenService{
		signingKey: cfg.SigningKey,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
	}, nil
}

// IssueAccessToken signs an HS256 token carrying the user's identity, a
// fresh jti and one role entry per role currently held.
func (s *TokenService) IssueAccessToken(user model.User, roles []string) (string, error) {
	now := time.Now().UTC()
	claims := &accessClaims{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Roles:       roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// GenerateRefreshToken returns an opaque 256-bit value from the system
// CSPRNG, base64 encoded.
func (s *TokenService) GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Validate fully validates an access token, including its expiry. Used
// by the auth middleware on every authenticated request.
func (s *TokenService) Validate(tokenString string) (*model.AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil || !token.Valid {
		return nil, model.ErrInvalidToken
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok {
		return nil, model.ErrInvalidToken
	}

	return claims.toAuthClaims(), nil
}

// ParseExpired extracts the identity from an access token for a refresh
// attempt. Signature, issuer, audience and the HS256 algorithm header are
// all enforced; only the expiry check is skipped, because the caller
// validates the refresh token's own expiry instead.
func (s *TokenService) ParseExpired(tokenString string) (*model.AuthClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenString, &accessClaims{}, s.keyFunc)
	if err != nil || !token.Valid {
		return nil, model.ErrInvalidToken
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok {
		return nil, model.ErrInvalidToken
	}

	// WithoutClaimsValidation skips issuer and audience too, so they are
	// checked by hand here.
	if claims.Issuer != s.issuer {
		return nil, model.ErrInvalidToken
	}
	if !containsAudience(claims.Audience, s.audience) {
		return nil, model.ErrInvalidToken
	}
	if claims.Subject == "" || claims.Username == "" {
		return nil, model.ErrInvalidToken
	}

	return claims.toAuthClaims(), nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	// WithValidMethods pins the exact algorithm; this guards against a
	// parser constructed without it.
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.signingKey, nil
}

func (c *accessClaims) toAuthClaims() *model.AuthClaims {
	return &model.AuthClaims{
		UserID:      c.Subject,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Roles:       c.Roles,
		TokenID:     c.ID,
	}
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
