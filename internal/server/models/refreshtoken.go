package models

import "time"

// RefreshToken is the server-side record of an issued refresh token.
// Records are never deleted; Revoked flips to true on rotation or logout.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// TokenPair is what clients receive after login, registration or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
