// Package auth signs and verifies the access and refresh JWTs and hashes
// account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/librarykeeper/internal/common"
)

// AccessPayload is the identity carried by an access token.
type AccessPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RefreshPayload is carried by a refresh token. TokenID is the primary key
// of the matching refresh_tokens row.
type RefreshPayload struct {
	UserID  string `json:"userId"`
	TokenID string `json:"tokenId"`
}

type accessClaims struct {
	AccessPayload
	jwt.RegisteredClaims
}

type refreshClaims struct {
	RefreshPayload
	jwt.RegisteredClaims
}

// CodecConfig configures a Codec. The two secrets are independent so a
// token of one kind never verifies as the other.
type CodecConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec issues and verifies HS256 tokens.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewCodec(cfg CodecConfig) *Codec {
	return &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// RefreshTTL is the lifetime given to new refresh tokens; stored records use
// it for their expires_at.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *Codec) SignAccess(p AccessPayload) (string, error) {
	return c.sign(c.accessSecret, &accessClaims{
		AccessPayload:    p,
		RegisteredClaims: c.registered(c.accessTTL),
	})
}

func (c *Codec) SignRefresh(p RefreshPayload) (string, error) {
	return c.sign(c.refreshSecret, &refreshClaims{
		RefreshPayload:   p,
		RegisteredClaims: c.registered(c.refreshTTL),
	})
}

// VerifyAccess returns common.ErrTokenExpired for an expired but otherwise
// valid token and common.ErrInvalidToken for every other failure.
func (c *Codec) VerifyAccess(token string) (*AccessPayload, error) {
	claims := &accessClaims{}
	if err := c.parse(token, c.accessSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return &claims.AccessPayload, nil
}

// VerifyRefresh follows the same error contract as VerifyAccess.
func (c *Codec) VerifyRefresh(token string) (*RefreshPayload, error) {
	claims := &refreshClaims{}
	if err := c.parse(token, c.refreshSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.TokenID == "" {
		return nil, common.ErrInvalidToken
	}
	return &claims.RefreshPayload, nil
}

func (c *Codec) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (c *Codec) sign(secret []byte, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	s, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (c *Codec) parse(tokenString string, secret []byte, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case err != nil:
		return common.ErrInvalidToken
	case !token.Valid:
		return common.ErrInvalidToken
	}
	return nil
}
